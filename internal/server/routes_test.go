package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"llmarena/internal/config"
	"llmarena/internal/core"
	"llmarena/internal/storage"
	"llmarena/internal/util"
)

// fakeUpstream is an OpenAI-compatible provider that answers per model.
type fakeUpstream struct {
	mu       sync.Mutex
	requests []core.ChatCompletionRequest
	failFor  map[string]int
	catalog  string
	listings int
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/models"):
		f.mu.Lock()
		f.listings++
		f.mu.Unlock()
		w.Header().Set(core.HeaderContentType, core.ContentTypeJSON)
		_, _ = io.WriteString(w, f.catalog)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/chat/completions"):
		body, _ := io.ReadAll(r.Body)
		var req core.ChatCompletionRequest
		_ = util.UnmarshalJSON(body, &req)
		f.mu.Lock()
		f.requests = append(f.requests, req)
		status := f.failFor[req.Model]
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"message":"model unavailable"}}`)
			return
		}
		w.Header().Set(core.HeaderContentType, core.ContentTypeJSON)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Sure! <!DOCTYPE html><html><body>`+
			req.Model+`</body></html> Enjoy."}}],"usage":{"total_tokens":77}}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeUpstream) lastRequest(t *testing.T) core.ChatCompletionRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("上游未收到任何请求")
	}
	return f.requests[len(f.requests)-1]
}

func newTestServer(t *testing.T, upstreamHandler http.Handler) *Server {
	t.Helper()

	srv := httptest.NewServer(upstreamHandler)
	t.Cleanup(srv.Close)

	st := storage.NewFileStorage(filepath.Join(t.TempDir(), "stats.json"))
	cfg := config.ServerConfig{
		Port:              "0",
		GinMode:           "test",
		APIKey:            "sk-or-test-key-1234",
		UpstreamBaseURL:   srv.URL + "/api/v1",
		FanoutConcurrency: 5,
		PromptHistorySize: 10,
		ModelsCacheTTL:    time.Minute,
		CORSAllowOrigin:   "*",
		HTTPClientSettings: config.HTTPClientSettings{
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 4,
			MaxConnsPerHost:     8,
			IdleConnTimeout:     time.Second,
			TLSHandshakeTimeout: time.Second,
			RequestTimeout:      5 * time.Second,
		},
		Storage: st,
		Logger:  &core.NopLogger{},
	}

	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("创建测试 Server 失败: %v", err)
	}

	t.Cleanup(func() {
		_ = server.Close()
		_ = st.Close()
	})

	return server
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(core.HeaderContentType, core.ContentTypeJSON)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := util.UnmarshalJSON(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("解析响应失败: %v, body=%s", err, w.Body.String())
	}
	return v
}

func TestNewServer_RequiresLoggerAndStorage(t *testing.T) {
	if _, err := NewServer(config.ServerConfig{Storage: storage.NewFileStorage("")}); err == nil {
		t.Error("缺少 Logger 时应返回错误")
	}
	if _, err := NewServer(config.ServerConfig{Logger: &core.NopLogger{}}); err == nil {
		t.Error("缺少 Storage 时应返回错误")
	}
}

func TestServerRoutes_FrontendAndHealth(t *testing.T) {
	server := newTestServer(t, &fakeUpstream{})

	for _, path := range []string{"/", "/styles.css", "/app.js", "/health"} {
		if w := doRequest(server, http.MethodGet, path, ""); w.Code != http.StatusOK {
			t.Errorf("%s 应返回 200，实际 %d", path, w.Code)
		}
	}
}

func TestCompare_MixedOutcomes(t *testing.T) {
	up := &fakeUpstream{failFor: map[string]int{"Y": http.StatusInternalServerError}}
	server := newTestServer(t, up)

	w := doRequest(server, http.MethodPost, "/api/compare",
		`{"prompt":"pricing page","selected_llms":["X","Y"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("compare 应返回 200，实际 %d: %s", w.Code, w.Body.String())
	}

	got := decode[core.Comparison](t, w)
	if len(got.Results) != 2 || len(got.DebugInfo) != 2 {
		t.Fatalf("应有 2 个结果和 2 条调试信息: %+v", got)
	}
	for _, r := range got.Results {
		switch r.Model() {
		case "X":
			if !r.OK() {
				t.Fatalf("X 应成功: %+v", r.Err)
			}
			if r.Result.Content != "<!DOCTYPE html><html><body>X</body></html>" {
				t.Errorf("HTML 未正确提取: %q", r.Result.Content)
			}
			if n, ok := r.Result.TokenCount.Value(); !ok || n != 77 {
				t.Errorf("token 数应为 77，实际 %v", r.Result.TokenCount)
			}
		case "Y":
			if r.OK() || !strings.Contains(r.Err.Message, "500") {
				t.Errorf("Y 应失败并包含状态码: %+v", r)
			}
		default:
			t.Errorf("意外的模型 %q", r.Model())
		}
	}

	if got.DebugInfo["X"].Response == nil || got.DebugInfo["X"].Response.StatusCode != http.StatusOK {
		t.Errorf("X 的调试信息应包含响应: %+v", got.DebugInfo["X"])
	}
	if got.DebugInfo["Y"].Error == "" {
		t.Error("Y 的调试信息应包含错误")
	}
	auth := got.DebugInfo["X"].Request.Headers[core.HeaderAuthorization]
	if strings.Contains(auth, "sk-or-test-key-1234") || !strings.HasSuffix(auth, "1234") {
		t.Errorf("Authorization 应被掩码: %q", auth)
	}
}

func TestCompare_RecordsPromptHistory(t *testing.T) {
	server := newTestServer(t, &fakeUpstream{})

	for _, p := range []string{"first", "second", "first"} {
		w := doRequest(server, http.MethodPost, "/api/compare", `{"prompt":"`+p+`","selected_llms":[]}`)
		if w.Code != http.StatusOK {
			t.Fatalf("compare 应返回 200，实际 %d", w.Code)
		}
		if got := decode[core.Comparison](t, w); got.Results == nil || len(got.Results) != 0 {
			t.Errorf("空模型列表应返回空结果数组，实际 %s", w.Body.String())
		}
	}

	w := doRequest(server, http.MethodGet, "/api/prompt_history", "")
	history := decode[[]string](t, w)
	if len(history) != 2 || history[0] != "first" || history[1] != "second" {
		t.Errorf("历史记录应去重并保持插入顺序: %v", history)
	}
}

func TestCompare_InvalidBody(t *testing.T) {
	server := newTestServer(t, &fakeUpstream{})

	for _, body := range []string{`{not json`, `{"selected_llms":["m"]}`, `{"prompt":"p","selected_llms":"m"}`} {
		w := doRequest(server, http.MethodPost, "/api/compare", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s 应返回 400，实际 %d", body, w.Code)
		}
		if got := decode[map[string]string](t, w); got["error"] == "" {
			t.Errorf("错误响应应包含 error 字段: %s", w.Body.String())
		}
	}
}

func TestReiterate_ComposesPromptAndForwardsPrevious(t *testing.T) {
	up := &fakeUpstream{}
	server := newTestServer(t, up)

	w := doRequest(server, http.MethodPost, "/api/reiterate",
		`{"original_prompt":"a blog","changes_prompt":"dark theme","llm":"m1","previous_content":"<html>old</html>"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("reiterate 应返回 200，实际 %d: %s", w.Code, w.Body.String())
	}

	got := decode[core.Iteration](t, w)
	if !got.Result.OK() || got.Result.Model() != "m1" {
		t.Fatalf("结果应为 m1 的成功结果: %+v", got.Result)
	}
	if got.DebugInfo.Failed() {
		t.Error("调试信息应为成功变体")
	}

	req := up.lastRequest(t)
	if req.Model != "m1" || len(req.Messages) != 2 {
		t.Fatalf("上游请求不符合预期: %+v", req)
	}
	if req.Messages[0].Role != core.RoleAssistant || !strings.Contains(req.Messages[0].Content, "<html>old</html>") {
		t.Errorf("第一条消息应携带之前的内容: %+v", req.Messages[0])
	}
	if !strings.Contains(req.Messages[1].Content, "a blog. Make the following changes: dark theme") {
		t.Errorf("提示词组合错误: %q", req.Messages[1].Content)
	}

	h := decode[[]string](t, doRequest(server, http.MethodGet, "/api/prompt_history", ""))
	if len(h) != 0 {
		t.Errorf("reiterate 不应写入历史记录: %v", h)
	}
}

func TestReiterate_MissingField(t *testing.T) {
	server := newTestServer(t, &fakeUpstream{})

	w := doRequest(server, http.MethodPost, "/api/reiterate",
		`{"original_prompt":"a blog","changes_prompt":"dark theme","llm":"m1"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("缺少 previous_content 应返回 400，实际 %d", w.Code)
	}
}

func TestListLLMs_FiltersMalformedEntries(t *testing.T) {
	up := &fakeUpstream{catalog: `{"data":[{"id":"m1"},{"name":"x"},"junk",{"id":7}]}`}
	server := newTestServer(t, up)

	for _i := 0; _i < 2; _i++ {
		w := doRequest(server, http.MethodGet, "/api/llms", "")
		if w.Code != http.StatusOK {
			t.Fatalf("/api/llms 应返回 200，实际 %d", w.Code)
		}
		if got := decode[[]string](t, w); len(got) != 1 || got[0] != "m1" {
			t.Errorf(`应只返回 ["m1"]，实际 %v`, got)
		}
	}

	up.mu.Lock()
	defer up.mu.Unlock()
	if up.listings != 1 {
		t.Errorf("第二次请求应命中缓存，上游请求次数 %d", up.listings)
	}
}

func TestListLLMs_BadShape(t *testing.T) {
	server := newTestServer(t, &fakeUpstream{catalog: `{"models":[]}`})

	w := doRequest(server, http.MethodGet, "/api/llms", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("格式错误应返回 500，实际 %d", w.Code)
	}
	if got := decode[map[string]string](t, w); got["error"] != core.ErrMsgCatalogFailure {
		t.Errorf("错误信息不符: %v", got)
	}
}

func TestStats_ReflectsModelCalls(t *testing.T) {
	server := newTestServer(t, &fakeUpstream{})

	doRequest(server, http.MethodPost, "/api/compare", `{"prompt":"p","selected_llms":["a","b"]}`)

	w := doRequest(server, http.MethodGet, "/api/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("/api/stats 应返回 200，实际 %d", w.Code)
	}
	got := decode[map[string]any](t, w)
	if got["totalRequests"] != float64(2) {
		t.Errorf("应记录 2 次模型调用，实际 %v", got["totalRequests"])
	}
	models, ok := got["models"].([]any)
	if !ok || len(models) != 2 {
		t.Errorf("应有 2 个模型统计，实际 %v", got["models"])
	}
}

func TestCompare_EmptyPromptAccepted(t *testing.T) {
	server := newTestServer(t, &fakeUpstream{})

	w := doRequest(server, http.MethodPost, "/api/compare", `{"prompt":"","selected_llms":["m"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("空 prompt 只要字段存在就应接受，实际 %d: %s", w.Code, w.Body.String())
	}
	if got := decode[core.Comparison](t, w); len(got.Results) != 1 {
		t.Errorf("应返回 1 个结果，实际 %d", len(got.Results))
	}

	w = doRequest(server, http.MethodPost, "/api/compare", `{"prompt":null,"selected_llms":["m"]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("prompt 为 null 应返回 400，实际 %d", w.Code)
	}
}

func TestReiterate_EmptyFieldsAccepted(t *testing.T) {
	up := &fakeUpstream{}
	server := newTestServer(t, up)

	w := doRequest(server, http.MethodPost, "/api/reiterate",
		`{"original_prompt":"a blog","changes_prompt":"","llm":"m1","previous_content":""}`)
	if w.Code != http.StatusOK {
		t.Fatalf("空 changes_prompt 只要字段存在就应接受，实际 %d: %s", w.Code, w.Body.String())
	}

	req := up.lastRequest(t)
	if len(req.Messages) != 1 {
		t.Fatalf("previous_content 为空时不应发送 assistant 消息: %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[0].Content, "a blog. Make the following changes: ") {
		t.Errorf("提示词组合错误: %q", req.Messages[0].Content)
	}
}

func TestStats_CountsAPIRequests(t *testing.T) {
	server := newTestServer(t, &fakeUpstream{})

	doRequest(server, http.MethodGet, "/api/prompt_history", "")
	doRequest(server, http.MethodGet, "/api/prompt_history", "")
	doRequest(server, http.MethodGet, "/health", "")
	doRequest(server, http.MethodGet, "/", "")

	got := decode[map[string]any](t, doRequest(server, http.MethodGet, "/api/stats", ""))
	if got["httpRequests"] != float64(2) {
		t.Errorf("应只统计 2 次 API 请求，实际 %v", got["httpRequests"])
	}
	if _, ok := got["httpAvgResponseTime"].(float64); !ok {
		t.Errorf("应返回平均 API 响应时间，实际 %v", got["httpAvgResponseTime"])
	}
}
