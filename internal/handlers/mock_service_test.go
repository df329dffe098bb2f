package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"smart_aquarium/internal/models"
	"smart_aquarium/internal/service"
	"smart_aquarium/internal/store"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}
func (m *mockAuth) TokenTTL() time.Duration { return 30 * time.Minute }

type mockEventLog struct {
	resp   []models.StoreEvent
	err    error
	last   service.LogFilter
	called int
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.StoreEvent, error) {
	m.called++
	m.last = f
	return m.resp, m.err
}

// memStore adapts store.Memory to service.Store.
type memStore struct{ *store.Memory }

func newMemStore(t *testing.T, tree map[string]any) memStore {
	t.Helper()
	var initial any
	if tree != nil {
		initial = tree
	}
	m, err := store.NewMemory(initial)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return memStore{m}
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
