package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sujalbistaa/lantern/internal/db"
	"github.com/sujalbistaa/lantern/internal/posts"
	"github.com/sujalbistaa/lantern/internal/ratelimit"
	"github.com/sujalbistaa/lantern/internal/ws"
)

func TestFeed_ReceivesPublishedPosts(t *testing.T) {
	gin.SetMode(gin.TestMode)

	url := "sqlite://" + filepath.Join(t.TempDir(), "feed.db") + "?_pragma=busy_timeout(5000)"
	gdb, err := db.Open(url, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(zap.NewNop())
	go hub.Run(ctx)

	svc := posts.NewService(db.NewStore(gdb), hub, zap.NewNop(), true)
	router := gin.New()
	SetupRoutes(router, &Env{Posts: svc, Hub: hub, Log: zap.NewNop()}, Options{
		AdminUser: testAdminUser,
		AdminPass: testAdminPass,
		Limiter:   ratelimit.New(testRateLimit, time.Minute),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/posts", "application/json", strings.NewReader(`{"text":"live now"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string `json:"type"`
		Data struct {
			Text  string `json:"text"`
			State string `json:"state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, posts.EventNewPost, msg.Type)
	assert.Equal(t, "live now", msg.Data.Text)
	assert.Equal(t, "published", msg.Data.State)
}

func TestFeed_NotMountedWithoutHub(t *testing.T) {
	app := newTestApp(t)
	rr := app.do(http.MethodGet, "/ws", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCORS(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	app.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_ExplicitOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, &Env{Log: zap.NewNop()}, Options{
		AdminUser:  testAdminUser,
		AdminPass:  testAdminPass,
		CORSOrigin: "https://lantern.example",
		Limiter:    ratelimit.New(testRateLimit, time.Minute),
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://lantern.example")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://lantern.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestPanicIsAccessLogged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	router := gin.New()
	SetupRoutes(router, &Env{Log: zap.New(core)}, Options{
		AdminUser: testAdminUser,
		AdminPass: testAdminPass,
		Limiter:   ratelimit.New(testRateLimit, time.Minute),
	})
	router.GET("/explode", func(c *gin.Context) { panic("handler bug") })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/explode", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	entries := logs.FilterMessage("request").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.EqualValues(t, http.StatusInternalServerError, entries[0].ContextMap()["status"])
	assert.Equal(t, "/explode", entries[0].ContextMap()["path"])
}
