package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	authx "github.com/shoptalklabs/shoptalk/pkg/auth"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

type fakeAgent struct {
	turns   []contractx.TurnInput
	history []contractx.Message
}

func (f *fakeAgent) HandleTurn(ctx context.Context, in contractx.TurnInput) (contractx.TurnOutput, error) {
	f.turns = append(f.turns, in)
	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = in.Caller.ID
	}
	return contractx.TurnOutput{
		OperationsPerformed: true,
		Message:             "done: " + in.Utterance,
		SessionID:           sessionID,
		Timestamp:           time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeAgent) History(ctx context.Context, sessionID string) ([]contractx.Message, error) {
	return f.history, nil
}

func (f *fakeAgent) ResetHistory(ctx context.Context, sessionID string) error {
	f.history = nil
	return nil
}

type env struct {
	server *httptest.Server
	agent  *fakeAgent
	auth   *authx.Service
	store  *storex.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := storex.NewMemoryStore()
	auth := authx.NewService(authx.Config{Secret: "test-secret", TokenTTL: time.Hour}, st)
	agent := &fakeAgent{}
	srv := New(Config{}, auth, agent, st)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &env{server: ts, agent: agent, auth: auth, store: st}
}

func (e *env) post(t *testing.T, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	return e.do(t, http.MethodPost, path, token, body)
}

func (e *env) get(t *testing.T, path, token string) (*http.Response, map[string]any) {
	t.Helper()
	return e.do(t, http.MethodGet, path, token, nil)
}

func (e *env) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func (e *env) signupAndLogin(t *testing.T, name, email string) string {
	t.Helper()
	resp, _ := e.post(t, "/api/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": "s3cret",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}
	resp, body := e.post(t, "/api/auth/login", "", map[string]string{
		"email": email, "password": "s3cret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("login returned no token")
	}
	return token
}

func TestSignupLoginVerify(t *testing.T) {
	e := newEnv(t)
	token := e.signupAndLogin(t, "Alice", "alice@example.com")

	resp, body := e.get(t, "/api/auth/verify", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d", resp.StatusCode)
	}
	user := body["user"].(map[string]any)
	if user["email"] != "alice@example.com" || user["role"] != "user" {
		t.Fatalf("user = %v", user)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	e := newEnv(t)
	e.signupAndLogin(t, "Alice", "alice@example.com")

	resp, _ := e.post(t, "/api/auth/signup", "", map[string]string{
		"name": "Other", "email": "alice@example.com", "password": "x",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	e := newEnv(t)
	e.signupAndLogin(t, "Alice", "alice@example.com")

	resp, _ := e.post(t, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestQueryRequiresAuth(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.post(t, "/api/query", "", map[string]string{"query": "hi"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp, _ = e.post(t, "/api/query", "not-a-token", map[string]string{"query": "hi"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestQueryRunsTurn(t *testing.T) {
	e := newEnv(t)
	token := e.signupAndLogin(t, "Alice", "alice@example.com")

	resp, body := e.post(t, "/api/query", token, map[string]string{
		"query": "show me laptops", "sessionId": "s42",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["success"] != true || body["sessionId"] != "s42" {
		t.Fatalf("body = %v", body)
	}

	if len(e.agent.turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(e.agent.turns))
	}
	turn := e.agent.turns[0]
	if turn.Utterance != "show me laptops" || turn.Caller.Email != "alice@example.com" {
		t.Fatalf("turn = %+v", turn)
	}
}

func TestQueryRejectsEmpty(t *testing.T) {
	e := newEnv(t)
	token := e.signupAndLogin(t, "Alice", "alice@example.com")

	resp, _ := e.post(t, "/api/query", token, map[string]string{"query": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	e := newEnv(t)
	token := e.signupAndLogin(t, "Alice", "alice@example.com")
	e.agent.history = []contractx.Message{
		{Role: contractx.MessageRoleUser, Content: "hi"},
		{Role: contractx.MessageRoleAssistant, Content: "hello"},
	}

	resp, body := e.get(t, "/api/query/history", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if msgs := body["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}

	resp, _ = e.do(t, http.MethodDelete, "/api/query/history", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if e.agent.history != nil {
		t.Fatal("history must be cleared")
	}
}

func TestOrdersScopedToCaller(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	token := e.signupAndLogin(t, "Alice", "alice@example.com")

	users, _ := e.store.Find(ctx, "users", storex.Doc{"email": "alice@example.com"}, nil)
	aliceID := users[0]["_id"].(string)

	e.store.InsertOne(ctx, "orders", storex.Doc{"user_id": aliceID, "total_price": 100.0, "createdAt": time.Now()})
	e.store.InsertOne(ctx, "orders", storex.Doc{"user_id": "someone-else", "total_price": 999.0, "createdAt": time.Now()})

	resp, body := e.get(t, "/api/orders", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	data := body["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("orders = %d, want only the caller's", len(data))
	}
	if body["total"] != float64(1) {
		t.Fatalf("total = %v, want 1", body["total"])
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t)

	resp, body := e.get(t, "/api/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}
