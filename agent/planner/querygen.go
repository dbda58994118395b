package planner

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
)

type QueryGenerator struct {
	systemPrompt string
	runner       compose.Runnable[[]*schema.Message, contractx.GeneratedQuery]
}

func NewQueryGenerator(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*QueryGenerator, error) {
	runner, err := compileStructuredChatGraph[contractx.GeneratedQuery](ctx, chatModel, "querygen.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile query generator graph: %v", contractx.ErrModelInvoke, err)
	}
	return &QueryGenerator{systemPrompt: systemPrompt, runner: runner}, nil
}

// GenerateQuery turns a natural-language request into a find filter and
// projection. Absent objects come back as empty maps, never nil.
func (g *QueryGenerator) GenerateQuery(ctx context.Context, text string) (contractx.GeneratedQuery, error) {
	if strings.TrimSpace(text) == "" {
		return contractx.GeneratedQuery{}, fmt.Errorf("%w: query text is required", contractx.ErrValidation)
	}

	out, err := g.runner.Invoke(ctx, []*schema.Message{
		schema.SystemMessage(g.systemPrompt),
		schema.UserMessage(fmt.Sprintf("Request: %q", text)),
	})
	if err != nil {
		return contractx.GeneratedQuery{}, fmt.Errorf("%w: query generation: %v", contractx.ErrModelInvoke, err)
	}

	if out.Filter == nil {
		out.Filter = map[string]any{}
	}
	if out.Projection == nil {
		out.Projection = map[string]any{}
	}
	return out, nil
}
