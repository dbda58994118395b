package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	draftx "github.com/shoptalklabs/shoptalk/agent/draft"
)

// Cart capabilities are pinned to the caller's own cart; the planner never
// supplies a user id for them.

func addToCart(deps Deps, caller contractx.Caller) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: "add_to_cart",
			Desc: "Add a product to the caller's cart",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"product_id":   {Type: schema.String, Desc: "ID of the product to add"},
				"product_name": {Type: schema.String, Desc: "Product name to resolve when no id is known"},
				"quantity":     {Type: schema.Integer, Desc: "How many units to add (default 1, minimum 1)"},
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			product, err := resolveProduct(ctx, deps,
				stringArg(args, "product_id"), stringArg(args, "product_name"))
			if err != nil {
				return contractx.Outcome{}, err
			}
			if !product.Found {
				name := product.Name
				if name == "" {
					return contractx.Outcome{Success: false, Message: "A product id or product name is required"}, nil
				}
				return contractx.Outcome{Success: false, Message: fmt.Sprintf("Product %q not found. Nothing was added to the cart", name)}, nil
			}

			quantity, ok := intArg(args, "quantity")
			if !ok {
				quantity = 1
			}
			item, err := deps.Drafts.Select(ctx, caller.ID, product.ID, quantity)
			if err != nil {
				if errors.Is(err, contractx.ErrValidation) {
					return contractx.Outcome{Success: false, Message: err.Error()}, nil
				}
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Added to cart: %d unit(s) of product %s", quantity, product.ID),
				Data:    item,
			}, nil
		},
	}
}

func removeFromCart(deps Deps, caller contractx.Caller) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: "remove_from_cart",
			Desc: "Remove a product from the caller's cart",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"product_id":   {Type: schema.String, Desc: "ID of the product to remove"},
				"product_name": {Type: schema.String, Desc: "Product name to resolve when no id is known"},
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			product, err := resolveProduct(ctx, deps,
				stringArg(args, "product_id"), stringArg(args, "product_name"))
			if err != nil {
				return contractx.Outcome{}, err
			}
			if !product.Found {
				return contractx.Outcome{Success: false, Message: "Product not found; the cart was not changed"}, nil
			}

			removed, err := deps.Drafts.Unselect(ctx, caller.ID, product.ID)
			if err != nil {
				return contractx.Outcome{}, err
			}
			if !removed {
				return contractx.Outcome{Success: false, Message: "That product was not in the cart"}, nil
			}
			return contractx.Outcome{Success: true, Message: "Removed the product from the cart"}, nil
		},
	}
}

func viewCart(deps Deps, caller contractx.Caller) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name:        "view_cart",
			Desc:        "Show the caller's cart with resolved product names and prices",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		Run: func(ctx context.Context, _ map[string]any) (contractx.Outcome, error) {
			summary, err := deps.Drafts.View(ctx, caller.ID)
			if err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Cart has %d item(s), total %.2f", len(summary.Lines), summary.Total),
				Data:    summary,
			}, nil
		},
	}
}

func clearCart(deps Deps, caller contractx.Caller) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name:        "clear_cart",
			Desc:        "Empty the caller's cart",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		Run: func(ctx context.Context, _ map[string]any) (contractx.Outcome, error) {
			if err := deps.Drafts.Clear(ctx, caller.ID); err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{Success: true, Message: "Cart cleared"}, nil
		},
	}
}

func placeOrder(deps Deps, caller contractx.Caller) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name:        "place_order",
			Desc:        "Place a pending order from the caller's cart at current prices",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		Run: func(ctx context.Context, _ map[string]any) (contractx.Outcome, error) {
			receipt, err := deps.Drafts.Finalize(ctx, caller.ID)
			if err != nil {
				switch {
				case errors.Is(err, draftx.ErrNothingToFinalize):
					return contractx.Outcome{Success: false, Message: "The cart is empty; there is nothing to order"}, nil
				case errors.Is(err, draftx.ErrNoValidItems):
					return contractx.Outcome{Success: false, Message: "No valid items in the cart; nothing was ordered"}, nil
				default:
					return contractx.Outcome{}, err
				}
			}

			msg := fmt.Sprintf("Order %s placed with total %.2f", receipt.OrderID, receipt.Total)
			if len(receipt.Skipped) > 0 {
				msg += fmt.Sprintf(". Skipped products no longer available: %s", strings.Join(receipt.Skipped, ", "))
			}
			return contractx.Outcome{Success: true, Message: msg, Data: receipt}, nil
		},
	}
}
