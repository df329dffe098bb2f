package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"smart_aquarium/internal/service"
)

func postJSON(t *testing.T, s *service.Service, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	newTestRouter(s).ServeHTTP(w, req)
	return w
}

func TestAuthHandlers_SignUp(t *testing.T) {
	tests := []struct {
		name     string
		auth     *mockAuth
		body     string
		wantCode int
		wantID   float64
	}{
		{name: "registered", auth: &mockAuth{signUpID: 42}, body: `{"username":"keeper","password":"pw"}`, wantCode: http.StatusOK, wantID: 42},
		{name: "missing password", auth: &mockAuth{}, body: `{"username":"keeper"}`, wantCode: http.StatusBadRequest},
		{name: "taken", auth: &mockAuth{signUpErr: service.ErrUserExists}, body: `{"username":"keeper","password":"pw"}`, wantCode: http.StatusConflict},
		{name: "rejected", auth: &mockAuth{signUpErr: service.ErrInvalidUsername}, body: `{"username":" ","password":"pw"}`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, &service.Service{Authorization: tt.auth}, "/auth/sign-up", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantID == 0 {
				return
			}
			var m map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if m["id"] != tt.wantID {
				t.Fatalf("id = %v, want %v", m["id"], tt.wantID)
			}
			if tt.auth.lastSignUpUsername != "keeper" {
				t.Fatalf("service got username %q", tt.auth.lastSignUpUsername)
			}
		})
	}
}

func TestAuthHandlers_SignIn(t *testing.T) {
	t.Run("issues bearer token", func(t *testing.T) {
		auth := &mockAuth{genTokenToken: "tok123"}
		w := postJSON(t, &service.Service{Authorization: auth}, "/auth/sign-in", `{"username":"keeper","password":"pw"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
		}
		var got TokenResponse
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		want := TokenResponse{Token: "tok123", TokenType: "Bearer", ExpiresIn: 1800}
		if got != want {
			t.Fatalf("response = %+v, want %+v", got, want)
		}
		if auth.lastGenPassword != "pw" {
			t.Fatalf("service got password %q", auth.lastGenPassword)
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		auth := &mockAuth{genTokenErr: errors.New("invalid password")}
		w := postJSON(t, &service.Service{Authorization: auth}, "/auth/sign-in", `{"username":"keeper","password":"nope"}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		if bytes.Contains(w.Body.Bytes(), []byte("invalid password")) {
			t.Fatalf("response leaks the failure reason: %s", w.Body.String())
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		w := postJSON(t, &service.Service{Authorization: &mockAuth{}}, "/auth/sign-in", `{"username":1}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}
