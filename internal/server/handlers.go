package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	authx "github.com/shoptalklabs/shoptalk/pkg/auth"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"success":   true,
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Name == "" || body.Email == "" || body.Password == "" {
		fail(w, http.StatusBadRequest, "Name, email, and password are required")
		return
	}

	account, err := s.auth.Signup(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, authx.ErrEmailTaken):
			fail(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, contractx.ErrValidation):
			fail(w, http.StatusBadRequest, err.Error())
		default:
			fail(w, http.StatusInternalServerError, "Error creating user")
		}
		return
	}

	respond(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "User created successfully",
		"userId":  account.ID,
		"user":    account,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Email == "" || body.Password == "" {
		fail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, account, err := s.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, authx.ErrInvalidCredentials) {
			fail(w, http.StatusUnauthorized, err.Error())
			return
		}
		fail(w, http.StatusInternalServerError, "Error during login")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"token":   token,
		"user":    account,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		fail(w, http.StatusUnauthorized, "Authentication token required")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Token is valid",
		"user":    caller,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		fail(w, http.StatusUnauthorized, "Authentication token required")
		return
	}

	var body struct {
		Query     string `json:"query"`
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Query == "" {
		fail(w, http.StatusBadRequest, "Query is required")
		return
	}

	out, err := s.agent.HandleTurn(r.Context(), contractx.TurnInput{
		Caller:    caller,
		SessionID: body.SessionID,
		Utterance: body.Query,
	})
	if err != nil {
		if errors.Is(err, contractx.ErrValidation) {
			fail(w, http.StatusBadRequest, err.Error())
			return
		}
		fail(w, http.StatusInternalServerError, "Error processing query")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"success":   true,
		"query":     body.Query,
		"response":  out,
		"sessionId": out.SessionID,
		"timestamp": out.Timestamp,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		fail(w, http.StatusUnauthorized, "Authentication token required")
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = caller.ID
	}

	history, err := s.agent.History(r.Context(), sessionID)
	if err != nil {
		fail(w, http.StatusInternalServerError, "Error fetching history")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": sessionID,
		"messages":  history,
	})
}

func (s *Server) handleResetHistory(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		fail(w, http.StatusUnauthorized, "Authentication token required")
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = caller.ID
	}

	if err := s.agent.ResetHistory(r.Context(), sessionID); err != nil {
		fail(w, http.StatusInternalServerError, "Error clearing history")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": sessionID,
		"message":   "History cleared",
	})
}

// handleListOrders pages through orders, newest first by default. Non-admin
// callers only ever see their own.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		fail(w, http.StatusUnauthorized, "Authentication token required")
		return
	}

	page := clampInt(r.URL.Query().Get("page"), 1, 1, 1<<30)
	limit := clampInt(r.URL.Query().Get("limit"), 20, 1, 100)
	sortField := r.URL.Query().Get("sortField")
	if sortField == "" {
		sortField = "createdAt"
	}
	sortOrder := -1
	if r.URL.Query().Get("sortOrder") == "asc" {
		sortOrder = 1
	}

	query := storex.Doc{}
	if caller.Role != contractx.RoleAdmin {
		query["user_id"] = caller.ID
	}

	skip := int64(page-1) * int64(limit)
	result, err := s.store.FindPaginated(r.Context(), "orders", storex.FindPage{
		Query:  query,
		Sort:   storex.Doc{sortField: sortOrder},
		Offset: skip,
		Limit:  int64(limit),
	})
	if err != nil {
		fail(w, http.StatusInternalServerError, "Error fetching orders")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"success":  true,
		"data":     result.Items,
		"page":     page,
		"pageSize": limit,
		"total":    result.Total,
		"hasMore":  skip+int64(len(result.Items)) < result.Total,
	})
}

func clampInt(raw string, def, min, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		n = def
	}
	if n < min {
		n = min
	}
	if n > max {
		n = max
	}
	return n
}
