package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ruhul03/crisis-connect/internal/history"
	"github.com/ruhul03/crisis-connect/internal/presence"
	"github.com/ruhul03/crisis-connect/internal/relay"
	"github.com/ruhul03/crisis-connect/pkg/types"
)

type nopPublisher struct{}

func (nopPublisher) Publish(topic string, payload interface{}) {}

type apiFixture struct {
	server  *httptest.Server
	board   *presence.Board
	histLog *history.Log
	relay   *relay.Service
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	publisher := nopPublisher{}
	board := presence.NewBoard(publisher)
	histLog := history.NewLog(1000, nil)
	relayService := relay.NewService("127.0.0.1:0", relay.NewRegistry(), board, histLog, publisher)

	srv := httptest.NewServer(NewServer(relayService, board, histLog))
	t.Cleanup(srv.Close)

	return &apiFixture{server: srv, board: board, histLog: histLog, relay: relayService}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestSendMessageEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/messages", map[string]string{
		"senderId":   "u1",
		"senderName": "Alice",
		"content":    "over http",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var stored types.Message
	decodeBody(t, resp, &stored)
	if stored.ID == "" || stored.Timestamp.IsZero() {
		t.Error("server must assign id and timestamp")
	}
	if stored.Type != types.MessageTypeText || stored.Priority != types.PriorityNormal {
		t.Errorf("defaults not applied: %s/%s", stored.Type, stored.Priority)
	}

	if f.histLog.Len() != 1 {
		t.Errorf("history length = %d, want 1", f.histLog.Len())
	}
	// Sending also auto-registers the user as SAFE.
	entry, exists := f.board.Get("u1")
	if !exists || entry.Status != types.StatusSafe {
		t.Errorf("sender not auto-registered SAFE: %+v", entry)
	}
}

func TestSendMessageRejectsBadBody(t *testing.T) {
	f := newAPIFixture(t)

	req, _ := http.NewRequest(http.MethodPost, f.server.URL+"/api/messages",
		bytes.NewReader([]byte("not json")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] == "" {
		t.Error("error body must carry a message")
	}
}

func TestRecentMessages(t *testing.T) {
	f := newAPIFixture(t)
	for i := 0; i < 60; i++ {
		f.relay.SendMessage(&types.Message{SenderID: "u1", Content: "x"})
	}

	var recent []*types.Message
	decodeBody(t, f.do(t, http.MethodGet, "/api/messages", nil), &recent)
	if len(recent) != 50 {
		t.Errorf("default window = %d, want 50", len(recent))
	}

	decodeBody(t, f.do(t, http.MethodGet, "/api/messages?limit=10", nil), &recent)
	if len(recent) != 10 {
		t.Errorf("limited window = %d, want 10", len(recent))
	}

	var all []*types.Message
	decodeBody(t, f.do(t, http.MethodGet, "/api/messages/all", nil), &all)
	if len(all) != 60 {
		t.Errorf("full history = %d, want 60", len(all))
	}

	if resp := f.do(t, http.MethodGet, "/api/messages?limit=abc", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("non-numeric limit: status = %d, want 400", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/messages?limit=-1", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative limit: status = %d, want 400", resp.StatusCode)
	}
}

func TestClearMessages(t *testing.T) {
	f := newAPIFixture(t)
	f.relay.SendMessage(&types.Message{SenderID: "u1", Content: "x"})

	if resp := f.do(t, http.MethodDelete, "/api/messages", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if f.histLog.Len() != 0 {
		t.Errorf("history not cleared: %d entries", f.histLog.Len())
	}
}

func TestStatusEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/status", map[string]interface{}{
		"userId":       "u1",
		"userName":     "Alice",
		"status":       types.StatusNeedHelp,
		"message":      "trapped on 2nd floor",
		"batteryLevel": 41,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var stored types.StatusEntry
	decodeBody(t, resp, &stored)
	if stored.Timestamp.IsZero() {
		t.Error("board must stamp the entry")
	}

	var single types.StatusEntry
	decodeBody(t, f.do(t, http.MethodGet, "/api/status/u1", nil), &single)
	if single.Status != types.StatusNeedHelp || single.UserName != "Alice" {
		t.Errorf("unexpected entry: %+v", single)
	}

	var all []*types.StatusEntry
	decodeBody(t, f.do(t, http.MethodGet, "/api/status", nil), &all)
	if len(all) != 1 {
		t.Errorf("board size = %d, want 1", len(all))
	}

	if resp := f.do(t, http.MethodGet, "/api/status/nobody", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing user: status = %d, want 404", resp.StatusCode)
	}
}

func TestUpdateStatusRejectsInvalidEntry(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/status", map[string]string{
		"userId": "u1",
		"status": "PANICKING", // not a known status
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	resp = f.do(t, http.MethodPost, "/api/status", map[string]string{
		"userId": "has spaces",
		"status": types.StatusSafe,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad user id: status = %d, want 400", resp.StatusCode)
	}
}

func TestDisconnectUserEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.board.Upsert(&types.StatusEntry{UserID: "u1", Status: types.StatusSafe})

	if resp := f.do(t, http.MethodDelete, "/api/status/u1", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if _, exists := f.board.Get("u1"); exists {
		t.Error("entry still present after delete")
	}

	if resp := f.do(t, http.MethodDelete, "/api/status/u1", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("repeat delete: status = %d, want 404", resp.StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.board.Upsert(&types.StatusEntry{UserID: "u1", Status: types.StatusCritical})
	f.relay.SendMessage(&types.Message{SenderID: "u1", Content: "x"})

	var stats types.Stats
	decodeBody(t, f.do(t, http.MethodGet, "/api/stats", nil), &stats)
	if stats.TotalMessages != 1 {
		t.Errorf("TotalMessages = %d, want 1", stats.TotalMessages)
	}
	if stats.CriticalUsers != 1 {
		t.Errorf("CriticalUsers = %d, want 1", stats.CriticalUsers)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	var body map[string]string
	decodeBody(t, f.do(t, http.MethodGet, "/api/health", nil), &body)
	if body["status"] != "UP" {
		t.Errorf("health status = %q, want UP", body["status"])
	}
	if body["service"] == "" {
		t.Error("health body must name the service")
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newAPIFixture(t)

	req, _ := http.NewRequest(http.MethodOptions, f.server.URL+"/api/messages", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if origin := resp.Header.Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("Allow-Origin = %q, want *", origin)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newAPIFixture(t)
	if resp := f.do(t, http.MethodGet, "/api/nope", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
