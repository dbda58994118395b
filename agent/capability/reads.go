package capability

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

// getUserInfo is self-scoped for non-admin callers: whatever query the
// planner proposes, a user only ever sees their own document. Password
// hashes never leave the store layer through this path.
func getUserInfo(deps Deps, caller contractx.Caller) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: "get_user_info",
			Desc: "Get information about a user from the users collection",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": queryParam("Query object to identify the user"),
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			query := queryArg(args, "query")
			if caller.Role != contractx.RoleAdmin {
				query = storex.Doc{"_id": caller.ID}
			}
			docs, err := deps.Store.Find(ctx, collectionUsers, query, nil)
			if err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Found %d user(s)", len(docs)),
				Data:    stripPasswords(docs),
			}, nil
		},
	}
}

// getOrderInfo is owner-scoped for non-admin callers: the caller's user id
// is forced into the query on top of whatever the planner proposed.
func getOrderInfo(deps Deps, caller contractx.Caller) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: "get_order_info",
			Desc: "Get information about an order from the orders collection",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": queryParam("Query object to identify the order"),
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			query := queryArg(args, "query")
			if caller.Role != contractx.RoleAdmin {
				query["user_id"] = caller.ID
			}
			docs, err := deps.Store.Find(ctx, collectionOrders, query, nil)
			if err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Found %d order(s)", len(docs)),
				Data:    docs,
			}, nil
		},
	}
}

func getProductInfo(deps Deps) Capability {
	return findCapability(deps, "get_product_info",
		"Get information about a product from the products collection",
		collectionProducts, "product(s)", false)
}

func getCategoryInfo(deps Deps) Capability {
	return findCapability(deps, "get_category_info",
		"Get information about a category from the categories collection",
		collectionCategories, "category(ies)", false)
}

func findUsers(deps Deps) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: "find_users",
			Desc: "Find users in the users collection",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": queryParam("Query object to identify the user or users"),
				"limit": {Type: schema.Number, Desc: "Maximum number of users to return"},
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			docs, err := findWithLimit(ctx, deps, collectionUsers, args)
			if err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Found %d user(s)", len(docs)),
				Data:    stripPasswords(docs),
			}, nil
		},
	}
}

func findOrders(deps Deps) Capability {
	return findCapability(deps, "find_orders",
		"Find orders in the orders collection",
		collectionOrders, "order(s)", true)
}

func findCategories(deps Deps) Capability {
	return findCapability(deps, "find_categories",
		"Find categories in the categories collection",
		collectionCategories, "category(ies)", true)
}

func findProducts(deps Deps) Capability {
	return findCapability(deps, "find_products",
		"Find products in the products collection",
		collectionProducts, "product(s)", true)
}

func getCollectionInfo(deps Deps) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name:        "get_collection_info",
			Desc:        "Get information about available collections",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		Run: func(ctx context.Context, _ map[string]any) (contractx.Outcome, error) {
			names, err := deps.Store.ListCollectionNames(ctx)
			if err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Found %d collections", len(names)),
				Data:    names,
			}, nil
		},
	}
}

func findCapability(deps Deps, name, desc, collection, noun string, withLimit bool) Capability {
	params := map[string]*schema.ParameterInfo{
		"query": queryParam("Query object selecting documents"),
	}
	if withLimit {
		params["limit"] = &schema.ParameterInfo{Type: schema.Number, Desc: "Maximum number of documents to return"}
	}

	return Capability{
		Info: &schema.ToolInfo{
			Name:        name,
			Desc:        desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			docs, err := findWithLimit(ctx, deps, collection, args)
			if err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Found %d %s", len(docs), noun),
				Data:    docs,
			}, nil
		},
	}
}

func findWithLimit(ctx context.Context, deps Deps, collection string, args map[string]any) ([]storex.Doc, error) {
	query := queryArg(args, "query")
	if limit, ok := intArg(args, "limit"); ok && limit > 0 {
		page, err := deps.Store.FindPaginated(ctx, collection, storex.FindPage{
			Query: query,
			Limit: int64(limit),
		})
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	}
	return deps.Store.Find(ctx, collection, query, nil)
}

func stripPasswords(docs []storex.Doc) []storex.Doc {
	out := make([]storex.Doc, 0, len(docs))
	for _, doc := range docs {
		clean := storex.CloneDoc(doc)
		delete(clean, "password")
		out = append(out, clean)
	}
	return out
}
