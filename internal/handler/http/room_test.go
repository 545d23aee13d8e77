package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "huddle/internal/handler/http"
	redisstate "huddle/internal/infra/state/redis"
	"huddle/internal/service"
)

type testEnv struct {
	router *gin.Engine
	repo   *redisstate.RedisStateRepository
	mr     *miniredis.Miniredis
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := redisstate.NewRedisStateRepository(client, "test:", 100, time.Minute)
	roomService := service.NewRoomService(repo, time.Hour)
	roomHandler := httphandler.NewRoomHandler(roomService)
	healthHandler := httphandler.NewHealthHandler(repo, "srv-test")

	router := gin.New()
	router.POST("/api/rooms", roomHandler.CreateRoom)
	router.GET("/api/rooms/:alias", roomHandler.LookupRoom)
	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/readyz", healthHandler.Readyz)

	return &testEnv{router: router, repo: repo, mr: mr}
}

func (e *testEnv) do(method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(w, req)
	return w
}

func TestCreateRoom_ReturnsAliases(t *testing.T) {
	env := setupEnv(t)

	w := env.do("POST", "/api/rooms", []byte(`{"name":"friday standup","avatarGlyph":"🦊"}`))
	require.Equal(t, nethttp.StatusCreated, w.Code)

	var resp httphandler.CreateRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RoomID)
	assert.NotEmpty(t, resp.Passphrase)
	assert.Len(t, resp.ShortCode, 6)
}

func TestCreateRoom_MissingName(t *testing.T) {
	env := setupEnv(t)

	w := env.do("POST", "/api/rooms", []byte(`{"avatarGlyph":"🦊"}`))
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "name is required")
}

func TestLookupRoom_ByShortCodeAndPassphrase(t *testing.T) {
	env := setupEnv(t)

	w := env.do("POST", "/api/rooms", []byte(`{"name":"lookup me"}`))
	require.Equal(t, nethttp.StatusCreated, w.Code)
	var created httphandler.CreateRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	for _, alias := range []string{created.ShortCode, created.Passphrase} {
		w = env.do("GET", "/api/rooms/"+alias, nil)
		require.Equal(t, nethttp.StatusOK, w.Code, "alias %q", alias)
		var resp httphandler.LookupRoomResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, created.RoomID, resp.RoomID)
		assert.Equal(t, "lookup me", resp.Name)
		assert.Equal(t, "waiting", resp.Status)
	}
}

func TestLookupRoom_Unknown(t *testing.T) {
	env := setupEnv(t)

	w := env.do("GET", "/api/rooms/NOPE42", nil)
	assert.Equal(t, nethttp.StatusNotFound, w.Code)
}

func TestLookupRoom_ClosedRoomStillResolves(t *testing.T) {
	env := setupEnv(t)

	w := env.do("POST", "/api/rooms", []byte(`{"name":"short lived"}`))
	require.Equal(t, nethttp.StatusCreated, w.Code)
	var created httphandler.CreateRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	require.NoError(t, env.repo.CloseRoom(context.Background(), created.RoomID, "", true))

	// Until TTL reclamation a closed room remains distinguishable from one
	// that never existed.
	w = env.do("GET", "/api/rooms/"+created.ShortCode, nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	var resp httphandler.LookupRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "closed", resp.Status)
}

func TestHealthz_AlwaysOK(t *testing.T) {
	env := setupEnv(t)

	w := env.do("GET", "/healthz", nil)
	assert.Equal(t, nethttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "srv-test")
}

func TestReadyz_ReflectsStoreConnectivity(t *testing.T) {
	env := setupEnv(t)

	w := env.do("GET", "/readyz", nil)
	assert.Equal(t, nethttp.StatusOK, w.Code)

	env.mr.Close()
	w = env.do("GET", "/readyz", nil)
	assert.Equal(t, nethttp.StatusServiceUnavailable, w.Code)
}
