package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"kanban/api/internal/config"
	"kanban/api/internal/store"
)

func newTestHandler(t *testing.T, cfg config.Config, client CompletionClient) http.Handler {
	t.Helper()
	service := newTestService(t, cfg, client)
	return NewHTTPServer(service, "*").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
}

func assertErrorCode(t *testing.T, recorder *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", recorder.Code, status, recorder.Body.String())
	}
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	decodeResponse(t, recorder, &body)
	if body.Code != code {
		t.Fatalf("code = %q, want %q", body.Code, code)
	}
	if body.Error == "" {
		t.Fatal("error message is empty")
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &fakeCompletion{})
	recorder := doJSON(t, handler, http.MethodGet, "/api/health", nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var body map[string]bool
	decodeResponse(t, recorder, &body)
	if !body["ok"] {
		t.Fatalf("body = %v", body)
	}
}

func TestReadyEndpoint(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &fakeCompletion{})
	recorder := doJSON(t, handler, http.MethodGet, "/api/ready", nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", recorder.Code, recorder.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &fakeCompletion{})
	recorder := doJSON(t, handler, http.MethodOptions, "/api/board", nil, nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("status = %d", recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestBoardEndpointSeedsAndReturnsSnapshot(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &fakeCompletion{})
	recorder := doJSON(t, handler, http.MethodGet, "/api/board", nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", recorder.Code, recorder.Body.String())
	}

	var view store.BoardView
	decodeResponse(t, recorder, &view)
	if len(view.Columns) == 0 {
		t.Fatal("board has no columns")
	}
	for _, column := range view.Columns {
		if column.ID == "" {
			t.Fatalf("column missing id: %+v", column)
		}
		if column.CardIDs == nil {
			t.Fatalf("column %q has null cardIds", column.Title)
		}
		for _, cardID := range column.CardIDs {
			if _, ok := view.Cards[cardID]; !ok {
				t.Fatalf("cardIds references %q which is not in cards", cardID)
			}
		}
	}
}

func TestColumnAndCardFlow(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &fakeCompletion{})

	recorder := doJSON(t, handler, http.MethodPost, "/api/columns", map[string]any{"title": "Later"}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("create column status = %d (body %s)", recorder.Code, recorder.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeResponse(t, recorder, &created)
	if created.ID == "" {
		t.Fatal("create column returned no id")
	}

	recorder = doJSON(t, handler, http.MethodPatch, "/api/columns/"+created.ID,
		map[string]any{"title": "Soon", "position": 0}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("patch column status = %d (body %s)", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodPost, "/api/cards",
		map[string]any{"columnId": created.ID, "title": "A card", "details": "d"}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("create card status = %d (body %s)", recorder.Code, recorder.Body.String())
	}
	var card struct {
		ID string `json:"id"`
	}
	decodeResponse(t, recorder, &card)

	recorder = doJSON(t, handler, http.MethodPatch, "/api/cards/"+card.ID,
		map[string]any{"title": "A better card"}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("patch card status = %d (body %s)", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet, "/api/board", nil, nil)
	var view store.BoardView
	decodeResponse(t, recorder, &view)
	if view.Columns[0].Title != "Soon" {
		t.Fatalf("first column = %q, want Soon", view.Columns[0].Title)
	}
	got, ok := view.Cards[card.ID]
	if !ok || got.Title != "A better card" {
		t.Fatalf("card in snapshot = %+v", got)
	}

	recorder = doJSON(t, handler, http.MethodDelete, "/api/cards/"+card.ID, nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("delete card status = %d", recorder.Code)
	}
	recorder = doJSON(t, handler, http.MethodDelete, "/api/columns/"+created.ID, nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("delete column status = %d", recorder.Code)
	}
}

func TestErrorEnvelopes(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &fakeCompletion{})

	recorder := doJSON(t, handler, http.MethodPost, "/api/columns", map[string]any{"title": ""}, nil)
	assertErrorCode(t, recorder, 422, "VALIDATION_ERROR")

	recorder = doJSON(t, handler, http.MethodPatch, "/api/columns/abc", map[string]any{"title": "x"}, nil)
	assertErrorCode(t, recorder, 422, "VALIDATION_ERROR")

	recorder = doJSON(t, handler, http.MethodDelete, "/api/cards/999999", nil, nil)
	assertErrorCode(t, recorder, http.StatusNotFound, "NOT_FOUND")

	recorder = doJSON(t, handler, http.MethodGet, "/api/nope", nil, nil)
	assertErrorCode(t, recorder, http.StatusNotFound, "NOT_FOUND")
}

func TestXUserHeaderScopesBoards(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &fakeCompletion{})

	alexHeader := http.Header{"X-User": []string{"alex"}}
	recorder := doJSON(t, handler, http.MethodPost, "/api/columns", map[string]any{"title": "Only Alex"}, alexHeader)
	if recorder.Code != http.StatusOK {
		t.Fatalf("create column status = %d", recorder.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeResponse(t, recorder, &created)

	samHeader := http.Header{"X-User": []string{"sam"}}
	recorder = doJSON(t, handler, http.MethodDelete, "/api/columns/"+created.ID, nil, samHeader)
	assertErrorCode(t, recorder, http.StatusNotFound, "NOT_FOUND")

	recorder = doJSON(t, handler, http.MethodDelete, "/api/columns/"+created.ID, nil, alexHeader)
	if recorder.Code != http.StatusOK {
		t.Fatalf("owner delete status = %d (body %s)", recorder.Code, recorder.Body.String())
	}
}

func TestSessionFlow(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &fakeCompletion{})

	recorder := doJSON(t, handler, http.MethodPost, "/api/session/login", map[string]any{"username": "alex"}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("login status = %d (body %s)", recorder.Code, recorder.Body.String())
	}
	var login struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	decodeResponse(t, recorder, &login)
	if login.Token == "" || login.Username != "alex" {
		t.Fatalf("login = %+v", login)
	}

	authHeader := http.Header{"Authorization": []string{"Bearer " + login.Token}}
	recorder = doJSON(t, handler, http.MethodGet, "/api/session", nil, authHeader)
	var status struct {
		Authenticated bool    `json:"authenticated"`
		Username      *string `json:"username"`
	}
	decodeResponse(t, recorder, &status)
	if !status.Authenticated || status.Username == nil || *status.Username != "alex" {
		t.Fatalf("session status = %+v", status)
	}

	// Board requests under the token act as the session user.
	recorder = doJSON(t, handler, http.MethodPost, "/api/columns", map[string]any{"title": "Mine"}, authHeader)
	if recorder.Code != http.StatusOK {
		t.Fatalf("create column status = %d", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodPost, "/api/session/logout", nil, authHeader)
	if recorder.Code != http.StatusOK {
		t.Fatalf("logout status = %d", recorder.Code)
	}

	// A revoked token is rejected, not downgraded to the default user.
	recorder = doJSON(t, handler, http.MethodGet, "/api/board", nil, authHeader)
	assertErrorCode(t, recorder, http.StatusUnauthorized, "UNAUTHORIZED")

	recorder = doJSON(t, handler, http.MethodGet, "/api/session", nil, authHeader)
	decodeResponse(t, recorder, &status)
	if status.Authenticated {
		t.Fatalf("session still authenticated after logout: %+v", status)
	}
}

func TestLoginWithPasswordOverHTTP(t *testing.T) {
	handler := newTestHandler(t, config.Config{AuthPassword: "hunter2"}, &fakeCompletion{})

	recorder := doJSON(t, handler, http.MethodPost, "/api/session/login",
		map[string]any{"username": "alex", "password": "nope"}, nil)
	assertErrorCode(t, recorder, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	recorder = doJSON(t, handler, http.MethodPost, "/api/session/login",
		map[string]any{"username": "alex", "password": "hunter2"}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("login status = %d (body %s)", recorder.Code, recorder.Body.String())
	}
}

func TestChatEndpoint(t *testing.T) {
	fake := &fakeCompletion{model: "test-model"}
	handler := newTestHandler(t, config.Config{}, fake)

	// Seed the board and find a column to target.
	recorder := doJSON(t, handler, http.MethodGet, "/api/board", nil, nil)
	var view store.BoardView
	decodeResponse(t, recorder, &view)
	column := view.Columns[0]

	fake.content = fmt.Sprintf(
		`{"reply": "Added.", "actions": [{"type": "create_card", "columnId": %q, "title": "Chat card", "details": ""}]}`,
		column.ID,
	)

	recorder = doJSON(t, handler, http.MethodPost, "/api/chat", map[string]any{"message": "add a card"}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("chat status = %d (body %s)", recorder.Code, recorder.Body.String())
	}

	var response struct {
		Reply   string           `json:"reply"`
		Actions []map[string]any `json:"actions"`
		Board   *store.BoardView `json:"board"`
		Model   *string          `json:"model"`
	}
	decodeResponse(t, recorder, &response)
	if response.Reply != "Added." {
		t.Fatalf("reply = %q", response.Reply)
	}
	if len(response.Actions) != 1 || response.Actions[0]["type"] != "create_card" {
		t.Fatalf("actions = %+v", response.Actions)
	}
	if response.Model == nil || *response.Model != "test-model" {
		t.Fatalf("model = %v", response.Model)
	}
	if response.Board == nil {
		t.Fatal("chat response has no board")
	}

	found := false
	for _, card := range response.Board.Cards {
		if card.Title == "Chat card" {
			found = true
		}
	}
	if !found {
		t.Fatal("created card missing from returned board")
	}
}

func TestChatEndpointErrors(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &fakeCompletion{content: "not json"})
	recorder := doJSON(t, handler, http.MethodPost, "/api/chat", map[string]any{"message": "hi"}, nil)
	assertErrorCode(t, recorder, http.StatusBadGateway, "BAD_UPSTREAM")

	recorder = doJSON(t, handler, http.MethodPost, "/api/chat", map[string]any{"message": ""}, nil)
	assertErrorCode(t, recorder, 422, "VALIDATION_ERROR")
}
