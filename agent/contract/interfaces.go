package contract

import "context"

// Planner maps role-scoped instructions, prior transcript and the new
// utterance to proposed invocations or a direct reply.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (PlanResponse, error)
}

// Synthesizer composes one user-facing message from collected step results.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (string, error)
}

// QueryGenerator turns a natural-language request into a structured
// filter+projection pair.
type QueryGenerator interface {
	GenerateQuery(ctx context.Context, text string) (GeneratedQuery, error)
}

// Transcript is the session memory consumed by the orchestrator.
type Transcript interface {
	Append(ctx context.Context, sessionID, role, content string) error
	List(ctx context.Context, sessionID string) ([]Message, error)
	Clear(ctx context.Context, sessionID string) error
}
