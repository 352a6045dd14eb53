package core

import "time"

// Upstream call timeouts
const (
	GenerationTimeout = 30 * time.Second
	CatalogTimeout    = 10 * time.Second
)

// Fan-out and history limits
const (
	DefaultFanoutConcurrency = 5
	DefaultHistorySize       = 10
)

// HTTP client config constants
const (
	HTTPMaxIdleConns          = 100
	HTTPMaxIdleConnsPerHost   = 20
	HTTPMaxConnsPerHost       = 50
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 10 * time.Second
	HTTPResponseHeaderTimeout = GenerationTimeout
	HTTPExpectContinueTimeout = 1 * time.Second
	HTTPRequestTimeout        = 2 * time.Minute
)

// Cache config constants
const (
	CacheDefaultCapacity = 256
	CacheCleanupInterval = 5 * time.Minute
	ModelsCacheTTL       = 5 * time.Minute
	CacheKeyVersion      = "v1"
)

// Stats and monitoring constants
const (
	StatsFilePath     = "stats.json"
	MinSaveInterval   = 5 * time.Second
	HistoryBufferSize = 1000
)

// Response body size limits
const (
	MaxResponseBodySize = 10 * 1024 * 1024
	MaxRequestBodySize  = 50 << 20
)

// Logging config constants
const (
	MaxDebugFilePathLength = 260
)

// File permission constants
const (
	FilePermissionReadWrite = 0644
)

// Time format constants
const (
	TimeFormatDateTime = "2006-01-02 15:04:05"
)
