package util

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"llmarena/internal/core"

	"github.com/bytedance/sonic"
)

// MarshalJSON wraps Sonic for performance
func MarshalJSON(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// UnmarshalJSON wraps Sonic for performance
func UnmarshalJSON(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// TruncateString truncates string and adds replacement text in the middle
func TruncateString(s string, prefixLen, suffixLen int, replacement string) string {
	if len(s) > prefixLen+suffixLen {
		return s[:prefixLen] + replacement + s[len(s)-suffixLen:]
	}
	return s
}

// MaskCredential hides all but the last four characters of a secret.
func MaskCredential(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return TruncateString(secret, 0, 4, "****")
}

// MaskAuthorization masks the credential part of an Authorization header value.
func MaskAuthorization(value string) string {
	if token, ok := strings.CutPrefix(value, core.AuthBearerPrefix); ok {
		return core.AuthBearerPrefix + MaskCredential(token)
	}
	return MaskCredential(value)
}

// FlattenHeaders converts an http.Header into a single-valued map, joining
// repeated values with ", ".
func FlattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}

// RoundSeconds converts d to seconds rounded to two decimal places.
func RoundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

// JoinURL joins a base URL and an absolute path without doubling slashes.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// ValidateUpstreamTarget rejects requests without an http(s) scheme and a host.
func ValidateUpstreamTarget(req *http.Request) error {
	if req == nil || req.URL == nil {
		return fmt.Errorf("invalid request: missing URL")
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("blocked upstream request target: unsupported scheme %q", req.URL.Scheme)
	}
	if req.URL.Host == "" {
		return fmt.Errorf("blocked upstream request target: missing host")
	}
	return nil
}
