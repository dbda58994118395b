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

type Synthesizer struct {
	systemPrompt string
	runner       compose.Runnable[[]*schema.Message, synthesizerOutput]
}

type synthesizerOutput struct {
	Summary string `json:"summary"`
}

func NewSynthesizer(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Synthesizer, error) {
	runner, err := compileStructuredChatGraph[synthesizerOutput](ctx, chatModel, "synthesizer.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile synthesizer graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Synthesizer{systemPrompt: systemPrompt, runner: runner}, nil
}

// Synthesize composes one user-facing message covering every executed
// step, successes and failures alike.
func (s *Synthesizer) Synthesize(ctx context.Context, req contractx.SynthesisRequest) (string, error) {
	payload := map[string]any{
		"request": req.Utterance,
		"results": resultsPayload(req.Results),
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal synthesis payload: %v", contractx.ErrValidation, err)
	}

	out, err := s.runner.Invoke(ctx, []*schema.Message{
		schema.SystemMessage(s.systemPrompt),
		schema.UserMessage(string(input)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: synthesizer invoke: %v", contractx.ErrModelInvoke, err)
	}

	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return "", fmt.Errorf("%w: synthesizer summary is empty", contractx.ErrSchemaViolation)
	}
	return summary, nil
}

func resultsPayload(results []contractx.InvocationResult) []map[string]any {
	payload := make([]map[string]any, 0, len(results))
	for _, r := range results {
		entry := map[string]any{
			"operation": r.Name,
			"args":      r.Args,
			"success":   r.Outcome.Success,
			"message":   r.Outcome.Message,
		}
		if r.Outcome.Data != nil {
			entry["data"] = r.Outcome.Data
		}
		if r.Err != nil {
			entry["error"] = r.Err.Error()
		}
		payload = append(payload, entry)
	}
	return payload
}
