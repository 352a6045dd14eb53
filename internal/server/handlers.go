package server

import (
	"fmt"
	"net/http"
	"time"

	"llmarena/internal/core"
	"llmarena/internal/metrics"
	"llmarena/internal/upstream"

	"github.com/gin-gonic/gin"
)

// CompareRequest is the body of POST /api/compare. Required fields must be
// present but may be empty.
type CompareRequest struct {
	Prompt       *string  `json:"prompt" binding:"required"`
	SelectedLLMs []string `json:"selected_llms"`
	InjectedHTML string   `json:"injected_html"`
}

// ReiterateRequest is the body of POST /api/reiterate.
type ReiterateRequest struct {
	OriginalPrompt  *string `json:"original_prompt" binding:"required"`
	ChangesPrompt   *string `json:"changes_prompt" binding:"required"`
	LLM             *string `json:"llm" binding:"required"`
	PreviousContent *string `json:"previous_content" binding:"required"`
	InjectedHTML    string  `json:"injected_html"`
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) compare(c *gin.Context) {
	logger := s.requestLogger(c)

	var request CompareRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Debug("Rejected compare request: %v", err)
		respondWithError(c, http.StatusBadRequest, core.ErrMsgInvalidBody)
		return
	}

	logger.Info("Compare: %d models, injected html %d bytes", len(request.SelectedLLMs), len(request.InjectedHTML))
	comparison := s.coordinator.Compare(c.Request.Context(), *request.Prompt, request.SelectedLLMs, request.InjectedHTML)
	c.JSON(http.StatusOK, comparison)
}

func (s *Server) reiterate(c *gin.Context) {
	logger := s.requestLogger(c)

	var request ReiterateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Debug("Rejected reiterate request: %v", err)
		respondWithError(c, http.StatusBadRequest, core.ErrMsgInvalidBody)
		return
	}

	logger.Info("Reiterate: model %s", *request.LLM)
	outcome, trace := s.upstream.Query(c.Request.Context(), upstream.Query{
		Model:           *request.LLM,
		Prompt:          fmt.Sprintf(core.ReiteratePromptTemplate, *request.OriginalPrompt, *request.ChangesPrompt),
		InjectedHTML:    request.InjectedHTML,
		PreviousContent: *request.PreviousContent,
		Endpoint:        core.EndpointReiterate,
	})

	c.JSON(http.StatusOK, core.Iteration{Result: outcome, DebugInfo: trace})
}

func (s *Server) listLLMs(c *gin.Context) {
	ids, err := s.upstream.ListModels(c.Request.Context())
	if err != nil {
		s.requestLogger(c).Error("Model catalog request failed: %v", err)
		respondWithError(c, http.StatusInternalServerError, core.ErrMsgCatalogFailure)
		return
	}
	c.JSON(http.StatusOK, ids)
}

func (s *Server) promptHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.history.List())
}

func (s *Server) getStatsData(c *gin.Context) {
	stats := s.metricsService.GetRequestStats()
	periodStats := metrics.GetPeriodStats(stats.RequestHistory, 24, 24*7, 24*30)
	cacheHits, cacheMisses := s.metricsService.CacheCounts()
	httpRequests, httpAvgResponseTime := s.metricsService.HTTPCounts()

	c.JSON(http.StatusOK, gin.H{
		"currentTime":         time.Now().Format(core.TimeFormatDateTime),
		"currentQPS":          fmt.Sprintf("%.3f", s.metricsService.GetQPS()),
		"totalRequests":       stats.TotalRequests,
		"successfulRequests":  stats.SuccessfulRequests,
		"failedRequests":      stats.FailedRequests,
		"totalRecords":        len(stats.RequestHistory),
		"stats24h":            periodStats[24],
		"stats7d":             periodStats[24*7],
		"stats30d":            periodStats[24*30],
		"models":              metrics.GetModelStats(stats.RequestHistory),
		"catalogCacheHits":    cacheHits,
		"catalogCacheMisses":  cacheMisses,
		"promptHistorySize":   s.history.Len(),
		"httpRequests":        httpRequests,
		"httpAvgResponseTime": httpAvgResponseTime,
	})
}
