package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
)

func (o *Orchestrator) compileHandleTurnGraph(
	ctx context.Context,
) (compose.Runnable[contractx.TurnInput, contractx.TurnOutput], error) {
	graph := compose.NewGraph[contractx.TurnInput, contractx.TurnOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in contractx.TurnInput) (*graphState, error) {
			return o.validateRequest(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_transcript",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return o.loadTranscript(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_transcript: %w", err)
	}

	if err := graph.AddLambdaNode("record_utterance",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return o.recordUtterance(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_utterance: %w", err)
	}

	if err := graph.AddLambdaNode("build_instructions",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return o.buildInstructions(st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node build_instructions: %w", err)
	}

	if err := graph.AddLambdaNode("plan",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return o.plan(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node plan: %w", err)
	}

	if err := graph.AddLambdaNode("execute",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return o.execute(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node execute: %w", err)
	}

	if err := graph.AddLambdaNode("synthesize",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return o.synthesize(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node synthesize: %w", err)
	}

	if err := graph.AddLambdaNode("record_reply",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return o.recordReply(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_reply: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (contractx.TurnOutput, error) {
			return o.finalizeReply(st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_transcript"},
		{"load_transcript", "record_utterance"},
		{"record_utterance", "build_instructions"},
		{"build_instructions", "plan"},
		{"plan", "execute"},
		{"execute", "synthesize"},
		{"synthesize", "record_reply"},
		{"record_reply", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
