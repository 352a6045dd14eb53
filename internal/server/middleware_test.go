package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"llmarena/internal/config"
	"llmarena/internal/core"

	"github.com/gin-gonic/gin"
)

func newTestServerForMiddleware(allowOrigin string) *Server {
	gin.SetMode(gin.TestMode)
	return &Server{config: config.ServerConfig{CORSAllowOrigin: allowOrigin, Logger: &core.NopLogger{}}}
}

func newMiddlewareRouter(s *Server, mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.Any("/echo", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDKey))
	})
	return r
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	s := newTestServerForMiddleware("*")
	r := newMiddlewareRouter(s, s.requestIDMiddleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/echo", nil))

	id := w.Header().Get(core.HeaderRequestID)
	if len(id) != 36 {
		t.Fatalf("应生成 UUID 请求 ID，实际 %q", id)
	}
	if w.Body.String() != id {
		t.Errorf("上下文中的请求 ID 应与响应头一致: %q != %q", w.Body.String(), id)
	}
}

func TestRequestIDMiddleware_PropagatesID(t *testing.T) {
	s := newTestServerForMiddleware("*")
	r := newMiddlewareRouter(s, s.requestIDMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.Header.Set(core.HeaderRequestID, "req-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(core.HeaderRequestID); got != "req-abc" {
		t.Errorf("应沿用客户端请求 ID，实际 %q", got)
	}
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServerForMiddleware("https://arena.example")
	r := newMiddlewareRouter(s, s.corsMiddleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/echo", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("预检请求应返回 204，实际 %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://arena.example" {
		t.Errorf("Allow-Origin 错误: %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/echo", nil))
	if w.Code != http.StatusOK {
		t.Errorf("普通请求应放行，实际 %d", w.Code)
	}
}

func TestCORSMiddleware_DefaultOrigin(t *testing.T) {
	s := newTestServerForMiddleware("")
	r := newMiddlewareRouter(s, s.corsMiddleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/echo", nil))
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("默认 Allow-Origin 应为 *，实际 %q", got)
	}
}

type recordingLogger struct {
	core.NopLogger
	format string
	args   []any
}

func (l *recordingLogger) Info(format string, args ...any) {
	l.format, l.args = format, args
}

func TestRequestLogger_PrefixesID(t *testing.T) {
	base := &recordingLogger{}
	s := &Server{config: config.ServerConfig{Logger: base}}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(requestIDKey, "rid-%d")
	s.requestLogger(c).Info("hello %s", "world")

	if base.format != "[%s] hello %s" {
		t.Errorf("格式串错误: %q", base.format)
	}
	if len(base.args) != 2 || base.args[0] != "rid-%d" || base.args[1] != "world" {
		t.Errorf("参数错误: %v", base.args)
	}
}

func TestRecoverPanic_RespondsJSON(t *testing.T) {
	s := newTestServerForMiddleware("*")
	r := gin.New()
	r.Use(gin.CustomRecovery(s.recoverPanic))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("panic 应返回 500，实际 %d", w.Code)
	}
	if w.Body.String() != `{"error":"`+core.ErrMsgInternal+`"}` {
		t.Errorf("响应体错误: %s", w.Body.String())
	}
}
