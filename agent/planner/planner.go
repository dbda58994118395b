// Package planner adapts tool-calling chat models to the planning,
// synthesis and query-generation contracts. Each adapter wraps a compiled
// model graph; none of them touch the store.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
)

type Planner struct {
	runner compose.Runnable[[]*schema.Message, *schema.Message]
}

// NewPlanner binds the capability schemas to the chat model and compiles
// the planning graph. The tool list fixes what this planner can ever
// propose; role scoping happens upstream when the list is assembled.
func NewPlanner(ctx context.Context, chatModel einomodel.ToolCallingChatModel, tools []*schema.ToolInfo) (*Planner, error) {
	toolModel, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
	}
	runner, err := compileChatGraph(ctx, toolModel, "planner.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile planner graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Planner{runner: runner}, nil
}

// Plan replays the transcript plus the new utterance through the
// tool-bound model. Tool calls become ordered invocations; a plain text
// reply becomes a direct answer.
func (p *Planner) Plan(ctx context.Context, req contractx.PlanRequest) (contractx.PlanResponse, error) {
	if strings.TrimSpace(req.Utterance) == "" {
		return contractx.PlanResponse{}, fmt.Errorf("%w: utterance is required", contractx.ErrValidation)
	}

	messages := make([]*schema.Message, 0, len(req.Transcript)+2)
	messages = append(messages, schema.SystemMessage(req.Instructions))
	for _, m := range req.Transcript {
		if m.Role == contractx.MessageRoleAssistant {
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
			continue
		}
		messages = append(messages, schema.UserMessage(m.Content))
	}
	messages = append(messages, schema.UserMessage(req.Utterance))

	msg, err := p.runner.Invoke(ctx, messages)
	if err != nil {
		return contractx.PlanResponse{}, fmt.Errorf("%w: planner invoke: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return contractx.PlanResponse{}, fmt.Errorf("%w: empty planner response", contractx.ErrSchemaViolation)
	}

	invocations, err := toInvocations(msg.ToolCalls)
	if err != nil {
		return contractx.PlanResponse{}, err
	}
	if len(invocations) == 0 {
		direct := strings.TrimSpace(msg.Content)
		if direct == "" {
			return contractx.PlanResponse{}, fmt.Errorf("%w: planner produced neither invocations nor a reply", contractx.ErrSchemaViolation)
		}
		return contractx.PlanResponse{Direct: direct}, nil
	}
	return contractx.PlanResponse{Invocations: invocations}, nil
}

func toInvocations(calls []schema.ToolCall) ([]contractx.Invocation, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	invocations := make([]contractx.Invocation, 0, len(calls))
	for _, call := range calls {
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		args := map[string]any{}
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid args for operation=%s: %v", contractx.ErrSchemaViolation, name, err)
			}
		}

		invocations = append(invocations, contractx.Invocation{Name: name, Args: args})
	}
	return invocations, nil
}
