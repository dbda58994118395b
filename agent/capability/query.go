package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

// generateQuery is the escape hatch for requests no listed operation
// serves: the query generator turns the text into a filter+projection and
// the result is executed immediately.
func generateQuery(deps Deps) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: "generate_query",
			Desc: "Generate and execute a database query from natural language directly",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"text":       {Type: schema.String, Desc: "The natural language query request", Required: true},
				"collection": {Type: schema.String, Desc: "Collection name to run the query on (default: products)"},
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			text := strings.TrimSpace(stringArg(args, "text"))
			if text == "" {
				return contractx.Outcome{Success: false, Message: "A query request text is required"}, nil
			}
			collection := strings.TrimSpace(stringArg(args, "collection"))
			if collection == "" {
				collection = collectionProducts
			}

			query, err := deps.Queries.GenerateQuery(ctx, text)
			if err != nil {
				return contractx.Outcome{}, err
			}

			docs, err := deps.Store.Find(ctx, collection, query.Filter, query.Projection)
			if err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Query generated and executed successfully on %s collection", collection),
				Data: storex.Doc{
					"query": query,
					"count": len(docs),
					"data":  docs,
				},
			}, nil
		},
	}
}
