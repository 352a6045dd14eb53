package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"llmarena/internal/core"
	"llmarena/internal/extract"
	"llmarena/internal/util"
)

// Client talks to an OpenAI-compatible chat completion provider.
type Client struct {
	baseURL           string
	apiKey            string
	httpClient        *http.Client
	metrics           core.MetricsCollector
	logger            core.Logger
	cache             core.Cache
	catalogCacheTTL   time.Duration
	exposeCredentials bool
	generationTimeout time.Duration
	catalogTimeout    time.Duration
}

// ClientConfig client configuration
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Metrics    core.MetricsCollector
	Logger     core.Logger

	// Cache holds successful catalog listings for CatalogCacheTTL; nil or a
	// zero TTL disables caching.
	Cache           core.Cache
	CatalogCacheTTL time.Duration

	// ExposeCredentials keeps the Authorization header verbatim in traces.
	ExposeCredentials bool

	GenerationTimeout time.Duration
	CatalogTimeout    time.Duration
}

// NewClient creates a new upstream client
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		baseURL:           cfg.BaseURL,
		apiKey:            cfg.APIKey,
		httpClient:        cfg.HTTPClient,
		metrics:           cfg.Metrics,
		logger:            cfg.Logger,
		cache:             cfg.Cache,
		catalogCacheTTL:   cfg.CatalogCacheTTL,
		exposeCredentials: cfg.ExposeCredentials,
		generationTimeout: cfg.GenerationTimeout,
		catalogTimeout:    cfg.CatalogTimeout,
	}
	if c.baseURL == "" {
		c.baseURL = core.DefaultUpstreamBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.metrics == nil {
		c.metrics = &core.NopMetrics{}
	}
	if c.logger == nil {
		c.logger = &core.NopLogger{}
	}
	if c.generationTimeout <= 0 {
		c.generationTimeout = core.GenerationTimeout
	}
	if c.catalogTimeout <= 0 {
		c.catalogTimeout = core.CatalogTimeout
	}
	return c
}

// Query is a single generation request for one model.
type Query struct {
	Model           string
	Prompt          string
	InjectedHTML    string
	PreviousContent string

	// Endpoint labels the call in metrics.
	Endpoint string
}

// BuildMessages assembles the chat message sequence for q.
func BuildMessages(q Query) []core.ChatMessage {
	messages := make([]core.ChatMessage, 0, 3)
	if q.PreviousContent != "" {
		messages = append(messages, core.ChatMessage{
			Role:    core.RoleAssistant,
			Content: fmt.Sprintf(core.PreviousContentTemplate, q.PreviousContent),
		})
	}
	if q.InjectedHTML != "" {
		messages = append(messages, core.ChatMessage{
			Role:    core.RoleUser,
			Content: fmt.Sprintf(core.InjectedHTMLTemplate, q.InjectedHTML),
		})
	}
	return append(messages, core.ChatMessage{
		Role:    core.RoleUser,
		Content: fmt.Sprintf(core.GenerateHTMLTemplate, q.Prompt),
	})
}

// ChatCompletionsURL returns the generation endpoint.
func (c *Client) ChatCompletionsURL() string {
	return util.JoinURL(c.baseURL, core.ChatCompletionsPath)
}

// ModelsURL returns the catalog endpoint.
func (c *Client) ModelsURL() string {
	return util.JoinURL(c.baseURL, core.ModelsPath)
}

func (c *Client) authorization() string {
	return core.AuthBearerPrefix + c.apiKey
}

// TraceRequest describes the outbound request for q as recorded in debug traces.
func (c *Client) TraceRequest(q Query) core.TraceRequest {
	return c.traceRequest(core.ChatCompletionRequest{Model: q.Model, Messages: BuildMessages(q)})
}

func (c *Client) traceRequest(payload core.ChatCompletionRequest) core.TraceRequest {
	auth := c.authorization()
	if !c.exposeCredentials {
		auth = util.MaskAuthorization(auth)
	}
	return core.TraceRequest{
		URL: c.ChatCompletionsURL(),
		Headers: map[string]string{
			core.HeaderAuthorization: auth,
			core.HeaderContentType:   core.ContentTypeJSON,
		},
		Data: payload,
	}
}

// Query performs one chat completion call. Failures are reported through the
// returned outcome, never as a Go error. The call is detached from ctx
// cancellation and bounded only by the generation timeout.
func (c *Client) Query(ctx context.Context, q Query) (core.ModelOutcome, core.DebugTrace) {
	payload := core.ChatCompletionRequest{Model: q.Model, Messages: BuildMessages(q)}
	traceReq := c.traceRequest(payload)

	startTime := time.Now()
	outcome, trace := c.send(ctx, q.Model, payload, traceReq, startTime)
	c.metrics.RecordModelCall(q.Model, q.Endpoint, outcome.OK(), time.Since(startTime))

	if !outcome.OK() {
		c.logger.Warn("Model %s failed: %s", q.Model, outcome.Err.Message)
	} else {
		c.logger.Debug("Model %s answered in %.2fs (tokens=%s)", q.Model, outcome.Result.ResponseTime, outcome.Result.TokenCount)
	}
	return outcome, trace
}

func (c *Client) send(
	ctx context.Context,
	model string,
	payload core.ChatCompletionRequest,
	traceReq core.TraceRequest,
	startTime time.Time,
) (core.ModelOutcome, core.DebugTrace) {
	fail := func(err error) (core.ModelOutcome, core.DebugTrace) {
		return core.Failed(model, err.Error()), core.FailureTrace(traceReq, err.Error())
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.generationTimeout)
	defer cancel()

	payloadBytes, err := util.MarshalJSON(payload)
	if err != nil {
		return fail(fmt.Errorf("failed to marshal request: %w", err))
	}

	resp, err := c.do(ctx, http.MethodPost, c.ChatCompletionsURL(), payloadBytes)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, core.MaxResponseBodySize))
	if err != nil {
		return fail(fmt.Errorf("failed to read response: %w", err))
	}

	c.logger.Debug("Upstream response for %s: status=%d, size=%d", model, resp.StatusCode, len(body))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var decoded any
		_ = util.UnmarshalJSON(body, &decoded)
		return fail(&StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        c.ChatCompletionsURL(),
			Detail:     upstreamErrorDetail(decoded),
		})
	}

	var decoded any
	if err := util.UnmarshalJSON(body, &decoded); err != nil {
		return fail(fmt.Errorf("invalid JSON response: %w", err))
	}
	elapsed := time.Since(startTime)

	result := core.ModelResult{
		LLM:          model,
		Content:      extract.HTML(firstChoiceContent(decoded)),
		ResponseTime: util.RoundSeconds(elapsed),
		TokenCount:   totalTokens(decoded),
	}
	trace := core.SuccessTrace(traceReq, core.TraceResponse{
		StatusCode: resp.StatusCode,
		Headers:    util.FlattenHeaders(resp.Header),
		Content:    decoded,
	})
	return core.Succeeded(result), trace
}

// do sends an authenticated request to the upstream provider.
func (c *Client) do(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(core.HeaderAuthorization, c.authorization())
	req.Header.Set(core.HeaderContentType, core.ContentTypeJSON)

	if err := util.ValidateUpstreamTarget(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // Request target is restricted by util.ValidateUpstreamTarget.
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// firstChoiceContent returns choices[0].message.content, or "" for any other shape.
func firstChoiceContent(body any) string {
	obj, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}
	message, ok := choice["message"].(map[string]any)
	if !ok {
		return ""
	}
	content, _ := message["content"].(string)
	return content
}

// totalTokens returns usage.total_tokens, or unknown when absent.
func totalTokens(body any) core.TokenCount {
	obj, ok := body.(map[string]any)
	if !ok {
		return core.TokenCount{}
	}
	usage, ok := obj["usage"].(map[string]any)
	if !ok {
		return core.TokenCount{}
	}
	total, ok := usage["total_tokens"].(float64)
	if !ok {
		return core.TokenCount{}
	}
	return core.KnownTokens(int(total))
}
