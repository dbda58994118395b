package contract

import "time"

// Role is the authorization level attached to a caller identity.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func ParseRole(s string) Role {
	if s == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

// Caller is the authenticated identity supplied by the auth layer.
type Caller struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Message is one transcript entry replayed into planner context. Role is
// exactly "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Invocation is one operation the planner proposes to run, by name.
type Invocation struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Outcome is the normal (non-fault) result of executing a capability.
// Success=false covers expected failures: zero-impact draft operations,
// unresolvable names, empty drafts.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// InvocationResult records one executed (or refused) step of a turn.
type InvocationResult struct {
	Name    string         `json:"name"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome Outcome        `json:"outcome"`
	// Err is set for system faults (store failures, unknown capability);
	// it never aborts sibling steps.
	Err error `json:"-"`
}

// PlanRequest carries everything the planner sees for one turn.
type PlanRequest struct {
	Instructions string
	Transcript   []Message
	Utterance    string
}

// PlanResponse is either an ordered list of proposed invocations or a
// direct textual reply, never both.
type PlanResponse struct {
	Invocations []Invocation
	Direct      string
}

// SynthesisRequest asks for one user-facing message covering all executed
// steps, including partial failures.
type SynthesisRequest struct {
	Utterance string
	Results   []InvocationResult
}

// GeneratedQuery is the structured output of the natural-language query
// generator: a find filter plus projection.
type GeneratedQuery struct {
	Filter     map[string]any `json:"filter"`
	Projection map[string]any `json:"projection"`
}

// TurnInput is one utterance from an authenticated caller.
type TurnInput struct {
	Caller    Caller
	SessionID string // optional; defaults to the caller id
	Utterance string
}

// TurnOutput is the terminal result of one turn.
type TurnOutput struct {
	OperationsPerformed bool      `json:"operationsPerformed"`
	Message             string    `json:"message"`
	SessionID           string    `json:"sessionId"`
	Timestamp           time.Time `json:"timestamp"`
}
