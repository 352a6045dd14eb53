package upstream

import (
	"fmt"
	"strings"
)

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
	Detail     string
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	msg := fmt.Sprintf("upstream returned %s for url: %s", status, e.URL)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// CatalogErrorKind classifies model catalog failures.
type CatalogErrorKind string

// Catalog failure kinds.
const (
	CatalogTransport CatalogErrorKind = "transport"
	CatalogBadJSON   CatalogErrorKind = "bad_json"
	CatalogBadShape  CatalogErrorKind = "bad_shape"
)

// CatalogError is returned by ListModels.
type CatalogError struct {
	Kind  CatalogErrorKind
	Cause error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("model catalog %s: %v", e.Kind, e.Cause)
}

func (e *CatalogError) Unwrap() error {
	return e.Cause
}

// upstreamErrorDetail pulls error.message out of an OpenAI-style error body.
func upstreamErrorDetail(body any) string {
	obj, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	switch v := obj["error"].(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return strings.TrimSpace(msg)
		}
	}
	return ""
}
