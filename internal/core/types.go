package core

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

// ModelResult is a successful generation from a single model.
type ModelResult struct {
	LLM          string     `json:"llm"`
	Content      string     `json:"content"`
	ResponseTime float64    `json:"response_time"`
	TokenCount   TokenCount `json:"token_count"`
}

// ModelError is a failed generation from a single model.
type ModelError struct {
	LLM     string `json:"llm"`
	Message string `json:"error"`
}

// ModelOutcome holds exactly one of Result or Err and serializes as whichever is set.
type ModelOutcome struct {
	Result *ModelResult
	Err    *ModelError
}

// Succeeded wraps a result into an outcome.
func Succeeded(result ModelResult) ModelOutcome {
	return ModelOutcome{Result: &result}
}

// Failed builds an error outcome for model.
func Failed(model, message string) ModelOutcome {
	return ModelOutcome{Err: &ModelError{LLM: model, Message: message}}
}

// OK reports whether the outcome carries a result.
func (o ModelOutcome) OK() bool {
	return o.Err == nil && o.Result != nil
}

// Model returns the model identifier of whichever variant is set.
func (o ModelOutcome) Model() string {
	switch {
	case o.Err != nil:
		return o.Err.LLM
	case o.Result != nil:
		return o.Result.LLM
	}
	return ""
}

func (o ModelOutcome) MarshalJSON() ([]byte, error) {
	switch {
	case o.Err != nil:
		return sonic.Marshal(o.Err)
	case o.Result != nil:
		return sonic.Marshal(o.Result)
	}
	return nil, fmt.Errorf("empty model outcome")
}

func (o *ModelOutcome) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := sonic.Unmarshal(data, &fields); err != nil {
		return err
	}
	if _, isErr := fields["error"]; isErr {
		var e ModelError
		if err := sonic.Unmarshal(data, &e); err != nil {
			return err
		}
		*o = ModelOutcome{Err: &e}
		return nil
	}
	var r ModelResult
	if err := sonic.Unmarshal(data, &r); err != nil {
		return err
	}
	*o = ModelOutcome{Result: &r}
	return nil
}

// TokenCount is an upstream-reported token total, or unknown.
type TokenCount struct {
	value int
	known bool
}

// KnownTokens returns a TokenCount holding n.
func KnownTokens(n int) TokenCount {
	return TokenCount{value: n, known: true}
}

// Value returns the count and whether upstream reported it.
func (t TokenCount) Value() (int, bool) {
	return t.value, t.known
}

func (t TokenCount) String() string {
	if !t.known {
		return TokenCountUnknown
	}
	return strconv.Itoa(t.value)
}

func (t TokenCount) MarshalJSON() ([]byte, error) {
	if !t.known {
		return []byte(strconv.Quote(TokenCountUnknown)), nil
	}
	return strconv.AppendInt(nil, int64(t.value), 10), nil
}

func (t *TokenCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*t = TokenCount{}
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("invalid token count %s: %w", data, err)
	}
	*t = KnownTokens(n)
	return nil
}

// TraceRequest records the outbound upstream request.
type TraceRequest struct {
	URL     string                `json:"url"`
	Headers map[string]string     `json:"headers"`
	Data    ChatCompletionRequest `json:"data"`
}

// TraceResponse records the inbound upstream response.
type TraceResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Content    any               `json:"content"`
}

// DebugTrace is the per-model troubleshooting record. Exactly one of
// Response and Error is set.
type DebugTrace struct {
	Request  TraceRequest   `json:"request"`
	Response *TraceResponse `json:"response,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// SuccessTrace builds the success variant.
func SuccessTrace(req TraceRequest, resp TraceResponse) DebugTrace {
	return DebugTrace{Request: req, Response: &resp}
}

// FailureTrace builds the failure variant.
func FailureTrace(req TraceRequest, message string) DebugTrace {
	return DebugTrace{Request: req, Error: message}
}

// Failed reports whether this is the failure variant.
func (d DebugTrace) Failed() bool {
	return d.Response == nil
}

// Comparison is the aggregated fan-out result.
type Comparison struct {
	Results   []ModelOutcome        `json:"results"`
	DebugInfo map[string]DebugTrace `json:"debug_info"`
}

// Iteration is the single-model refinement result.
type Iteration struct {
	Result    ModelOutcome `json:"result"`
	DebugInfo DebugTrace   `json:"debug_info"`
}

// RequestStats holds aggregated model call statistics for monitoring.
type RequestStats struct {
	TotalRequests      int64           `json:"total_requests"`
	SuccessfulRequests int64           `json:"successful_requests"`
	FailedRequests     int64           `json:"failed_requests"`
	TotalResponseTime  int64           `json:"total_response_time"`
	LastRequestTime    time.Time       `json:"last_request_time"`
	RequestHistory     []RequestRecord `json:"request_history"`
}

// RequestRecord represents a single model call for history tracking.
type RequestRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	ResponseTime int64     `json:"response_time"`
	Model        string    `json:"model"`
	Endpoint     string    `json:"endpoint"`
}

// PeriodStats holds computed statistics for a time period.
type PeriodStats struct {
	Requests        int64   `json:"requests"`
	SuccessRate     float64 `json:"successRate"`
	AvgResponseTime int64   `json:"avgResponseTime"`
	QPS             float64 `json:"qps"`
}

// ModelStats summarizes calls to one model.
type ModelStats struct {
	Model           string  `json:"model"`
	Requests        int64   `json:"requests"`
	Failures        int64   `json:"failures"`
	SuccessRate     float64 `json:"successRate"`
	AvgResponseTime int64   `json:"avgResponseTime"`
}
