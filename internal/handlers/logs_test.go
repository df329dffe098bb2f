package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smart_aquarium/internal/models"
	"smart_aquarium/internal/service"
	"smart_aquarium/internal/store"
)

func TestLogsHandler_ListAndValidation(t *testing.T) {
	auth := &mockAuth{parseID: 99}
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.StoreEvent{
		{EventID: "e1", OccurredAt: now, Type: models.EventCommand, Path: "aquarium/commands", Description: "merge aquarium/commands"},
		{EventID: "e2", OccurredAt: now.Add(1 * time.Second), Type: models.EventCommand, Path: "aquarium/commands", Description: "merge aquarium/commands"},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		Authorization: auth,
		EventLog:      logs,
	}
	r := newTestRouter(s)

	// Missing/invalid 'from' → 400
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/?from=notatime", nil)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// Valid range and type (lowercase type should be normalized to upper in service call)
	w = httptest.NewRecorder()
	q := "/api/v1/logs/?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) + "&type=command&path=aquarium/commands"
	req = httptest.NewRequest(http.MethodGet, q, nil)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int                   `json:"count"`
		Events []models.StoreEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.last.Type != models.EventCommand {
		t.Fatalf("expected type COMMAND, got %q", logs.last.Type)
	}
	if logs.last.Path != "aquarium/commands" {
		t.Fatalf("expected path filter to be forwarded, got %q", logs.last.Path)
	}
}

func TestLogsHandler_InvalidPathAndFailure(t *testing.T) {
	logs := &mockEventLog{err: fmt.Errorf("path filter: %w", store.ErrInvalidPath)}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, EventLog: logs})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/?path=a/../b", nil)
	req.Header.Set("Authorization", "Bearer ok")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid path, got %d", w.Code)
	}

	logs.err = errors.New("db down")
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/logs/?to=2025-08-31", nil)
	req.Header.Set("Authorization", "Bearer ok")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	wantTo := time.Date(2025, 8, 31, 23, 59, 59, 999999999, time.UTC)
	if !logs.last.To.Equal(wantTo) {
		t.Fatalf("date-only 'to' should be end of day, got %v", logs.last.To)
	}
}
