package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumotsudai/kumotsudai-hub/internal/application/command"
	"github.com/kumotsudai/kumotsudai-hub/internal/application/query"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/auth"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/messaging"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/persistence/memory"
)

func newTestServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()

	store := memory.NewStore()
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false})
	t.Cleanup(func() { bus.Close() })

	tokens, err := auth.NewTokenManager(auth.TokenManagerConfig{Secret: "test-secret"})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	for _, m := range mutate {
		m(&cfg)
	}

	return NewServer(cfg, Dependencies{
		RegisterUser:     command.NewRegisterUserHandler(store.Users(), bus, 4),
		AuthenticateUser: command.NewAuthenticateUserHandler(store.Users()),
		CreateOffering:   command.NewCreateOfferingHandler(store.Offerings(), store.Users(), bus),
		TogglePrayer:     command.NewTogglePrayerHandler(store.Offerings(), store.Users(), bus),
		AddGuidance:      command.NewAddGuidanceHandler(store.Offerings(), store.Users(), bus),
		UpdateProfile:    command.NewUpdateProfileHandler(store.Users()),

		GetOffering:      query.NewGetOfferingHandler(store.Offerings()),
		GetRanking:       query.NewGetRankingHandler(store.Offerings(), store.Snapshots(), nil),
		SearchOfferings:  query.NewSearchOfferingsHandler(store.Offerings()),
		GetUserOfferings: query.NewGetUserOfferingsHandler(store.Offerings()),
		GetNotifications: query.NewGetNotificationsHandler(store.Notifications()),

		NotificationRepo: store.Notifications(),
		UserRepo:         store.Users(),
		Tokens:           tokens,
	})
}

// doRequest runs a request through the full middleware chain and decodes the
// response envelope.
func doRequest(t *testing.T, h http.Handler, method, path, token string, body interface{}) (int, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var envelope apiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return rec.Code, envelope
}

func dataMap(t *testing.T, envelope apiResponse) map[string]interface{} {
	t.Helper()
	m, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok, "data is not an object: %v", envelope.Data)
	return m
}

func registerUser(t *testing.T, h http.Handler, username string) (token, userID string) {
	t.Helper()
	status, envelope := doRequest(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":     username,
		"email":        username + "@kumotsudai.example",
		"password":     "open-sesame",
		"display_name": "The " + username,
	})
	require.Equal(t, http.StatusCreated, status)
	data := dataMap(t, envelope)
	token = data["token"].(string)
	userID = data["user"].(map[string]interface{})["id"].(string)
	return token, userID
}

func TestServerAPI(t *testing.T) {
	server := newTestServer(t)
	h := server.Handler()

	authorToken, authorID := registerUser(t, h, "miyako")
	pilgrimToken, _ := registerUser(t, h, "touka")

	t.Run("health", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, envelope.Success)
	})

	t.Run("register rejects duplicate usernames", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"username":     "miyako",
			"email":        "other@kumotsudai.example",
			"password":     "open-sesame",
			"display_name": "Impostor",
		})
		assert.Equal(t, http.StatusConflict, status)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "already_exists", envelope.Error.Code)
	})

	t.Run("login", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"login":    "miyako",
			"password": "open-sesame",
		})
		assert.Equal(t, http.StatusOK, status)
		assert.NotEmpty(t, dataMap(t, envelope)["token"])
	})

	t.Run("login rejects wrong password", func(t *testing.T) {
		status, _ := doRequest(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"login":    "miyako",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("creating an offering requires auth", func(t *testing.T) {
		status, _ := doRequest(t, h, http.MethodPost, "/api/v1/offerings", "", map[string]interface{}{
			"title": "x", "content": "y", "genres": []string{"nature"},
		})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	var offeringID string
	t.Run("create offering", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodPost, "/api/v1/offerings", authorToken, map[string]interface{}{
			"title":   "Moonlit shrine path",
			"content": "An offering left at the mountain gate.",
			"genres":  []string{"nature"},
		})
		require.Equal(t, http.StatusCreated, status)
		offeringID = dataMap(t, envelope)["id"].(string)
		require.NotEmpty(t, offeringID)
	})

	t.Run("get offering", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodGet, "/api/v1/offerings/"+offeringID, "", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, envelope.Success)
	})

	t.Run("get offering returns 404 for unknown ID", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodGet, "/api/v1/offerings/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "not_found", envelope.Error.Code)
	})

	t.Run("toggle prayer on and off", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodPost, "/api/v1/offerings/"+offeringID+"/prayers", pilgrimToken, nil)
		require.Equal(t, http.StatusOK, status)
		data := dataMap(t, envelope)
		assert.Equal(t, true, data["offered"])
		assert.Equal(t, float64(1), data["prayers"])

		status, envelope = doRequest(t, h, http.MethodPost, "/api/v1/offerings/"+offeringID+"/prayers", pilgrimToken, nil)
		require.Equal(t, http.StatusOK, status)
		data = dataMap(t, envelope)
		assert.Equal(t, false, data["offered"])
		assert.Equal(t, float64(0), data["prayers"])
	})

	t.Run("add guidance", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodPost, "/api/v1/offerings/"+offeringID+"/guidances", pilgrimToken, map[string]string{
			"content": "Follow the lanterns at dusk.",
		})
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, float64(1), dataMap(t, envelope)["guidance_count"])
	})

	t.Run("search by genre", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodGet, "/api/v1/search?genres=nature", "", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, envelope.Success)
	})

	t.Run("ranking window", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodGet, "/api/v1/rankings/week", "", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, envelope.Success)
	})

	t.Run("ranking rejects unknown window", func(t *testing.T) {
		status, _ := doRequest(t, h, http.MethodGet, "/api/v1/rankings/decade", "", nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("user offerings by relation", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodGet, "/api/v1/users/"+authorID+"/offerings?relation=author", "", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, envelope.Success)
	})

	t.Run("profile round trip", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodGet, "/api/v1/users/me", authorToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "miyako", dataMap(t, envelope)["username"])

		bio := "Keeper of the mountain gate."
		status, envelope = doRequest(t, h, http.MethodPut, "/api/v1/users/me", authorToken, map[string]interface{}{
			"bio": bio,
		})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, bio, dataMap(t, envelope)["bio"])
	})

	t.Run("notifications for the author", func(t *testing.T) {
		status, envelope := doRequest(t, h, http.MethodGet, "/api/v1/notifications", authorToken, nil)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, envelope.Success)
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("responses carry a request ID header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}

func TestServerRateLimit(t *testing.T) {
	server := newTestServer(t, func(c *Config) { c.RateLimitPerMinute = 3 })
	h := server.Handler()

	var limited bool
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "expected rate limiter to trigger")
}

func TestShutdownStopsRateLimiter(t *testing.T) {
	server := newTestServer(t, func(c *Config) { c.RateLimitPerMinute = 3 })
	require.NotNil(t, server.rateLimiter)

	require.NoError(t, server.Shutdown(context.Background()))
	require.NoError(t, server.Shutdown(context.Background()))

	select {
	case <-server.rateLimiter.stopCh:
	default:
		t.Fatal("cleanup goroutine was not signalled to stop")
	}
}
