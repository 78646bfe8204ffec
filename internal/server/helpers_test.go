package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pushorpass/backend/internal/auth"
	"github.com/pushorpass/backend/internal/database"
	"github.com/pushorpass/backend/internal/game"
	"github.com/pushorpass/backend/internal/players"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type testEnv struct {
	handler http.Handler
	clock   *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	clock := &testClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("integration-secret"),
		Issuer:        "pushpass-auth",
		Audience:      "pushpass-api",
		TokenTTL:      72 * time.Hour,
		Clock:         clock.Now,
	})

	playersService, err := players.NewService(players.ServiceConfig{Database: db, Clock: clock.Now})
	if err != nil {
		t.Fatalf("failed to construct players service: %v", err)
	}

	gameService, err := game.NewService(game.ServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: game.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct game service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		TokenManager:        tokenManager,
		GameService:         gameService,
		PlayersService:      playersService,
		LeaderboardMaxLimit: 100,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}

	return &testEnv{handler: handler, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, request)
	return recorder
}

// createSession registers a player over HTTP and returns the bearer token
// and user id.
func (e *testEnv) createSession(t *testing.T, displayName string) (string, string) {
	t.Helper()
	body := ""
	if displayName != "" {
		body = `{"display_name":"` + displayName + `"}`
	}
	recorder := e.do(t, http.MethodPost, "/auth/session", "", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("session creation failed with status %d: %s", recorder.Code, recorder.Body.String())
	}
	var payload sessionResponsePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode session response: %v", err)
	}
	if payload.AccessToken == "" || payload.UserID == "" {
		t.Fatalf("incomplete session payload: %+v", payload)
	}
	return payload.AccessToken, payload.UserID
}

func decodeJSON(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}
