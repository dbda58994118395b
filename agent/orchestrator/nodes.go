package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	capabilityx "github.com/shoptalklabs/shoptalk/agent/capability"
	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	promptx "github.com/shoptalklabs/shoptalk/agent/prompt"
)

// graphState is threaded through the turn pipeline. Every node takes it,
// mutates its slice of it, and passes it on.
type graphState struct {
	Caller    contractx.Caller
	SessionID string
	Utterance string
	Now       time.Time

	Registry     *capabilityx.Registry
	Instructions string
	Transcript   []contractx.Message
	Plan         contractx.PlanResponse
	Results      []contractx.InvocationResult
	Reply        string
}

func (o *Orchestrator) validateRequest(in contractx.TurnInput) (*graphState, error) {
	if strings.TrimSpace(in.Caller.ID) == "" {
		return nil, fmt.Errorf("%w: caller id is required", contractx.ErrValidation)
	}
	utterance := strings.TrimSpace(in.Utterance)
	if utterance == "" {
		return nil, fmt.Errorf("%w: utterance is empty", contractx.ErrValidation)
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = in.Caller.ID
	}

	return &graphState{
		Caller:    in.Caller,
		SessionID: sessionID,
		Utterance: utterance,
		Now:       o.now().UTC(),
	}, nil
}

func (o *Orchestrator) loadTranscript(ctx context.Context, st *graphState) (*graphState, error) {
	transcript, err := o.transcript.List(ctx, st.SessionID)
	if err != nil {
		return nil, err
	}
	st.Transcript = transcript
	return st, nil
}

// recordUtterance runs before planning: even a turn that dies in the
// planner leaves the user's message in the transcript.
func (o *Orchestrator) recordUtterance(ctx context.Context, st *graphState) (*graphState, error) {
	if err := o.transcript.Append(ctx, st.SessionID, contractx.MessageRoleUser, st.Utterance); err != nil {
		return nil, err
	}
	return st, nil
}

func (o *Orchestrator) buildInstructions(st *graphState) (*graphState, error) {
	st.Registry = capabilityx.New(o.deps, st.Caller)
	st.Instructions = promptx.BuildInstructions(o.prompts, st.Caller.Role, st.Registry.Summaries())
	return st, nil
}

func (o *Orchestrator) plan(ctx context.Context, st *graphState) (*graphState, error) {
	plan, err := o.plannerFor(st.Caller.Role).Plan(ctx, contractx.PlanRequest{
		Instructions: st.Instructions,
		Transcript:   st.Transcript,
		Utterance:    st.Utterance,
	})
	if err != nil {
		return nil, err
	}
	st.Plan = plan
	return st, nil
}

// execute runs the proposed invocations strictly in order. A step that
// fails, whether an expected refusal or a system fault, is recorded and
// never aborts its siblings: later steps still run, and the synthesizer
// reports the whole picture.
func (o *Orchestrator) execute(ctx context.Context, st *graphState) (*graphState, error) {
	if st.Plan.Direct != "" {
		return st, nil
	}

	st.Results = make([]contractx.InvocationResult, 0, len(st.Plan.Invocations))
	for _, inv := range st.Plan.Invocations {
		result := contractx.InvocationResult{Name: inv.Name, Args: inv.Args}

		cap, ok := st.Registry.Lookup(inv.Name)
		if !ok {
			result.Err = fmt.Errorf("%w: %q", contractx.ErrCapabilityNotFound, inv.Name)
			result.Outcome = contractx.Outcome{Success: false, Message: fmt.Sprintf("Operation %q is not available", inv.Name)}
			log.Warn().Str("operation", inv.Name).Str("caller", st.Caller.ID).Msg("planner proposed unavailable operation")
			st.Results = append(st.Results, result)
			continue
		}

		outcome, err := cap.Run(ctx, inv.Args)
		if err != nil {
			result.Err = err
			result.Outcome = contractx.Outcome{Success: false, Message: "The operation failed due to an internal error"}
			log.Error().Err(err).Str("operation", inv.Name).Msg("operation failed")
		} else {
			result.Outcome = outcome
		}
		st.Results = append(st.Results, result)
	}
	return st, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, st *graphState) (*graphState, error) {
	if st.Plan.Direct != "" {
		st.Reply = st.Plan.Direct
		return st, nil
	}

	reply, err := o.synthesizer.Synthesize(ctx, contractx.SynthesisRequest{
		Utterance: st.Utterance,
		Results:   st.Results,
	})
	if err != nil {
		return nil, err
	}
	st.Reply = reply
	return st, nil
}

func (o *Orchestrator) recordReply(ctx context.Context, st *graphState) (*graphState, error) {
	if err := o.transcript.Append(ctx, st.SessionID, contractx.MessageRoleAssistant, st.Reply); err != nil {
		return nil, err
	}
	return st, nil
}

func (o *Orchestrator) finalizeReply(st *graphState) (contractx.TurnOutput, error) {
	if strings.TrimSpace(st.Reply) == "" {
		return contractx.TurnOutput{}, fmt.Errorf("%w: empty reply", contractx.ErrValidation)
	}
	return contractx.TurnOutput{
		OperationsPerformed: operationsPerformed(st.Results),
		Message:             st.Reply,
		SessionID:           st.SessionID,
		Timestamp:           st.Now,
	}, nil
}

// operationsPerformed is true when at least one step reached an executor,
// successful or not; direct replies and turns whose every proposal was an
// unavailable name report false.
func operationsPerformed(results []contractx.InvocationResult) bool {
	for _, r := range results {
		if !errors.Is(r.Err, contractx.ErrCapabilityNotFound) {
			return true
		}
	}
	return false
}
