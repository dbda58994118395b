// Package orchestrator runs one conversation turn end to end: record the
// utterance, plan, execute the proposed operations in order, synthesize a
// reply, and record it. Steps run strictly sequentially; a later step sees
// every earlier step's writes through the store.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	capabilityx "github.com/shoptalklabs/shoptalk/agent/capability"
	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	promptx "github.com/shoptalklabs/shoptalk/agent/prompt"
)

// Planners carries one planner per role: each is compiled with exactly the
// tool schemas that role's registry advertises.
type Planners struct {
	Admin contractx.Planner
	User  contractx.Planner
}

type Orchestrator struct {
	deps        capabilityx.Deps
	prompts     promptx.PromptSet
	planners    Planners
	synthesizer contractx.Synthesizer
	transcript  contractx.Transcript

	graphRunner compose.Runnable[contractx.TurnInput, contractx.TurnOutput]

	now func() time.Time
}

func New(
	deps capabilityx.Deps,
	prompts promptx.PromptSet,
	planners Planners,
	synthesizer contractx.Synthesizer,
	transcript contractx.Transcript,
) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Drafts == nil {
		return nil, errors.New("draft service is required")
	}
	if deps.Queries == nil {
		return nil, errors.New("query generator is required")
	}
	if planners.Admin == nil || planners.User == nil {
		return nil, errors.New("a planner per role is required")
	}
	if synthesizer == nil {
		return nil, errors.New("synthesizer is required")
	}
	if transcript == nil {
		return nil, errors.New("transcript store is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	o := &Orchestrator{
		deps:        deps,
		prompts:     prompts,
		planners:    planners,
		synthesizer: synthesizer,
		transcript:  transcript,
		now:         deps.Now,
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTurn runs one utterance through the turn graph.
func (o *Orchestrator) HandleTurn(ctx context.Context, in contractx.TurnInput) (contractx.TurnOutput, error) {
	out, err := o.graphRunner.Invoke(ctx, in)
	if err != nil {
		log.Error().Err(err).
			Str("caller", in.Caller.ID).
			Str("session", in.SessionID).
			Msg("turn failed")
		return contractx.TurnOutput{}, err
	}
	return out, nil
}

// History returns the session transcript in replay order.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]contractx.Message, error) {
	return o.transcript.List(ctx, sessionID)
}

// ResetHistory drops the session transcript.
func (o *Orchestrator) ResetHistory(ctx context.Context, sessionID string) error {
	return o.transcript.Clear(ctx, sessionID)
}

func (o *Orchestrator) plannerFor(role contractx.Role) contractx.Planner {
	if role == contractx.RoleAdmin {
		return o.planners.Admin
	}
	return o.planners.User
}
