package routes

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"eventsphere/config"
	"eventsphere/middlewares"
	"eventsphere/models"
	"eventsphere/utils"
)

func init() { gin.SetMode(gin.TestMode) }

type testServer struct {
	r       *gin.Engine
	store   *models.Store
	tokens  *utils.TokenManager
	mr      *miniredis.Miniredis
	metrics *middlewares.Metrics
}

func testConfig() *config.Config {
	return &config.Config{
		Redis: config.RedisConfig{CacheTTL: time.Minute},
		Auth: config.AuthConfig{
			JWTSecret:  "test-secret",
			JWTExpiry:  time.Hour,
			BcryptCost: bcrypt.MinCost,
		},
		RateLimit: config.RateLimitConfig{
			Max:           10000,
			Window:        time.Minute,
			AuthPerMinute: 10000,
		},
	}
}

// newTestServer wires the real engine over the in-memory store. useRedis adds miniredis
// for the response cache and the quota.
func newTestServer(t *testing.T, useRedis bool, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	ts := &testServer{
		store:   models.NewMemoryStore(),
		tokens:  utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry),
		metrics: middlewares.NewMetrics(),
	}
	var rdb *redis.Client
	if useRedis {
		ts.mr = miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: ts.mr.Addr()})
	}

	r, stop, err := NewEngine(Options{
		Config:  cfg,
		Store:   ts.store,
		Tokens:  ts.tokens,
		Redis:   rdb,
		Metrics: ts.metrics,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(stop)
	ts.r = r
	return ts
}

func (ts *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	ts.r.ServeHTTP(w, req)
	return w
}

// token issues a token for a user that exists in the store.
func (ts *testServer) token(t *testing.T, username, role string) string {
	t.Helper()
	u := models.User{Username: username, Email: username + "@example.com", Password: "x", Role: role}
	require.NoError(t, ts.store.Users.Create(context.Background(), &u))
	tok, err := ts.tokens.Generate(models.Identity{UserID: u.ID, Username: u.Username, Role: u.Role})
	require.NoError(t, err)
	return tok
}

// seedEvent stores an event directly.
func (ts *testServer) seedEvent(t *testing.T, title, category string, date time.Time, capacity int) models.Event {
	t.Helper()
	price, virtual := 10.0, false
	e, err := models.NewEvent(models.EventInput{
		Title:       title,
		Description: "about " + title,
		Date:        date,
		Location:    "Hall A",
		Capacity:    capacity,
		Price:       &price,
		IsVirtual:   &virtual,
		Category:    category,
	}, "organizer-1")
	require.NoError(t, err)
	require.NoError(t, ts.store.Events.Create(context.Background(), &e))
	return e
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, typ, message string) {
	t.Helper()
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
	env := decode[errorEnvelope](t, w)
	require.Equal(t, typ, env.Error.Type)
	if message != "" {
		require.Equal(t, message, env.Error.Message)
	}
}

const validEventBody = `{"title":"Go Meetup","description":"Talks","date":"2030-05-01T18:00:00Z",
	"location":"Hall A","capacity":2,"price":0,"isVirtual":false,"category":"Tech"}`
