package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	authx "github.com/shoptalklabs/shoptalk/pkg/auth"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

func insertCategory(deps Deps) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: "insert_category",
			Desc: "Insert a new category into the categories collection",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"name": {Type: schema.String, Desc: "Category name", Required: true},
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			name := strings.TrimSpace(stringArg(args, "name"))
			if name == "" {
				return contractx.Outcome{Success: false, Message: "Category name is required"}, nil
			}
			id, err := deps.Store.InsertOne(ctx, collectionCategories, storex.Stamp(storex.Doc{
				"name": name,
			}, deps.Now()))
			if err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Category %q added successfully with ID: %s", name, id),
				Data:    storex.Doc{"_id": id, "name": name},
			}, nil
		},
	}
}

func insertProduct(deps Deps) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: "insert_product",
			Desc: "Insert a new product into the products collection",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"name":          {Type: schema.String, Desc: "Product name", Required: true},
				"price":         {Type: schema.Number, Desc: "Product price in rupees (default 0)"},
				"category_id":   {Type: schema.String, Desc: "ID of the category the product belongs to"},
				"category_name": {Type: schema.String, Desc: "Category name to resolve when no id is known; a missing category is created first and reported"},
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			name := strings.TrimSpace(stringArg(args, "name"))
			if name == "" {
				return contractx.Outcome{Success: false, Message: "Product name is required"}, nil
			}
			price, _ := numberArg(args, "price")

			category, err := resolveCategory(ctx, deps,
				stringArg(args, "category_id"), stringArg(args, "category_name"), true)
			if err != nil {
				return contractx.Outcome{}, err
			}

			doc := storex.Doc{"name": name, "price": price, "category_id": nil}
			if category.ID != "" {
				doc["category_id"] = category.ID
			}
			id, err := deps.Store.InsertOne(ctx, collectionProducts, storex.Stamp(doc, deps.Now()))
			if err != nil {
				return contractx.Outcome{}, err
			}

			msg := fmt.Sprintf("Product %q added successfully with ID: %s", name, id)
			if category.Created {
				msg += fmt.Sprintf(". Category %q did not exist and was created first with ID: %s", category.Name, category.ID)
			}
			return contractx.Outcome{
				Success: true,
				Message: msg,
				Data:    storex.Doc{"_id": id, "name": name, "price": price, "category_id": doc["category_id"], "category_created": category.Created},
			}, nil
		},
	}
}

func insertOrder(deps Deps) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: "insert_order",
			Desc: "Insert a new order into the orders collection",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id":       {Type: schema.String, Desc: "ID of the user the order belongs to"},
				"user_name":     {Type: schema.String, Desc: "User name to resolve when no id is known; a missing user is created first and reported"},
				"product_ids":   {Type: schema.Array, ElemInfo: &schema.ParameterInfo{Type: schema.String}, Desc: "Product IDs the order contains"},
				"product_names": {Type: schema.Array, ElemInfo: &schema.ParameterInfo{Type: schema.String}, Desc: "Product names to resolve; a missing product is reported, never created"},
				"total_price":   {Type: schema.Number, Desc: "Total price of the order; computed from product prices when omitted"},
				"order_status":  {Type: schema.String, Desc: "Status of the order (pending, completed, cancelled); default pending"},
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			user, err := resolveUser(ctx, deps,
				stringArg(args, "user_id"), stringArg(args, "user_name"), true)
			if err != nil {
				return contractx.Outcome{}, err
			}
			if !user.Found {
				return contractx.Outcome{Success: false, Message: "A user id or user name is required for an order"}, nil
			}

			productIDs := stringListArg(args, "product_ids")
			var missing []string
			for _, name := range stringListArg(args, "product_names") {
				product, err := resolveProduct(ctx, deps, "", name)
				if err != nil {
					return contractx.Outcome{}, err
				}
				if !product.Found {
					missing = append(missing, name)
					continue
				}
				productIDs = append(productIDs, product.ID)
			}
			if len(productIDs) == 0 {
				msg := "An order needs at least one valid product"
				if len(missing) > 0 {
					msg = fmt.Sprintf("No valid products: %s not found. Add the missing products first", strings.Join(missing, ", "))
				}
				return contractx.Outcome{Success: false, Message: msg}, nil
			}

			total, ok := numberArg(args, "total_price")
			if !ok {
				total, err = sumProductPrices(ctx, deps, productIDs)
				if err != nil {
					return contractx.Outcome{}, err
				}
			}
			status := strings.TrimSpace(stringArg(args, "order_status"))
			if status == "" {
				status = "pending"
			}

			ids := make([]any, 0, len(productIDs))
			for _, pid := range productIDs {
				ids = append(ids, pid)
			}
			id, err := deps.Store.InsertOne(ctx, collectionOrders, storex.Stamp(storex.Doc{
				"user_id":      user.ID,
				"product_ids":  ids,
				"total_price":  total,
				"order_status": status,
			}, deps.Now()))
			if err != nil {
				return contractx.Outcome{}, err
			}

			msg := fmt.Sprintf("Order added successfully with ID: %s", id)
			if user.Created {
				msg += fmt.Sprintf(". User %q did not exist and was created first with ID: %s", user.Name, user.ID)
			}
			if len(missing) > 0 {
				msg += fmt.Sprintf(". Skipped missing products: %s", strings.Join(missing, ", "))
			}
			return contractx.Outcome{
				Success: true,
				Message: msg,
				Data:    storex.Doc{"_id": id, "user_id": user.ID, "total_price": total, "user_created": user.Created, "skipped_products": missing},
			}, nil
		},
	}
}

func insertUser(deps Deps) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: "insert_user",
			Desc: "Insert a new user into the users collection",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"name":     {Type: schema.String, Desc: "User name", Required: true},
				"email":    {Type: schema.String, Desc: "User email", Required: true},
				"password": {Type: schema.String, Desc: "Password; stored hashed, never plain", Required: true},
				"role":     {Type: schema.String, Desc: "Role of the user (admin, user); default user"},
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			name := strings.TrimSpace(stringArg(args, "name"))
			email := strings.TrimSpace(stringArg(args, "email"))
			password := stringArg(args, "password")
			if name == "" || email == "" || password == "" {
				return contractx.Outcome{Success: false, Message: "Name, email and password are required for a user"}, nil
			}
			role := strings.TrimSpace(stringArg(args, "role"))
			if role == "" {
				role = string(contractx.RoleUser)
			}

			hashed, err := authx.HashPassword(password)
			if err != nil {
				return contractx.Outcome{}, err
			}
			id, err := deps.Store.InsertOne(ctx, collectionUsers, storex.Stamp(storex.Doc{
				"name":     name,
				"email":    email,
				"password": hashed,
				"role":     role,
			}, deps.Now()))
			if err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("User %q added successfully with ID: %s", name, id),
				Data:    storex.Doc{"_id": id, "name": name, "email": email, "role": role},
			}, nil
		},
	}
}

func updateProduct(deps Deps) Capability {
	return updateCapability(deps, "update_product", "Update products in the products collection", collectionProducts, "products", nil)
}

func updateCategory(deps Deps) Capability {
	return updateCapability(deps, "update_category", "Update categories in the categories collection", collectionCategories, "categories", nil)
}

func updateOrder(deps Deps) Capability {
	return updateCapability(deps, "update_order", "Update an order in the orders collection", collectionOrders, "orders", nil)
}

// updateUser hashes any password inside the patch before it reaches the
// store; a plain-text password never lands in a user document.
func updateUser(deps Deps) Capability {
	return updateCapability(deps, "update_user", "Update users in the users collection", collectionUsers, "users",
		func(fields storex.Doc) error {
			password, ok := fields["password"].(string)
			if !ok || password == "" {
				return nil
			}
			hashed, err := authx.HashPassword(password)
			if err != nil {
				return err
			}
			fields["password"] = hashed
			return nil
		})
}

func updateCapability(deps Deps, name, desc, collection, noun string, patchHook func(storex.Doc) error) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: name,
			Desc: desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query":  queryParam("Query object selecting documents to update"),
				"update": queryParam("Update object with fields to set"),
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			query := queryArg(args, "query")
			update := queryArg(args, "update")
			if len(update) == 0 {
				return contractx.Outcome{Success: false, Message: "An update object with fields to set is required"}, nil
			}

			patch := storex.Touch(update, deps.Now())
			if patchHook != nil {
				if fields, ok := patch["$set"].(map[string]any); ok {
					if err := patchHook(fields); err != nil {
						return contractx.Outcome{}, err
					}
				}
			}

			result, err := deps.Store.UpdateMany(ctx, collection, query, patch)
			if err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Updated %d %s", result.Modified, noun),
				Data:    result,
			}, nil
		},
	}
}

func deleteOrder(deps Deps) Capability {
	return deleteCapability(deps, "delete_order", "Delete an order from the orders collection", collectionOrders, "orders")
}

func deleteUser(deps Deps) Capability {
	return deleteCapability(deps, "delete_user", "Delete a user from the users collection", collectionUsers, "users")
}

func deleteProduct(deps Deps) Capability {
	return deleteCapability(deps, "delete_product", "Delete a product from the products collection", collectionProducts, "products")
}

// deleteCategory cascades: products under a deleted category go with it
// rather than dangling on a dead category_id.
func deleteCategory(deps Deps) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: "delete_category",
			Desc: "Delete a category from the categories collection and all products under it",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": queryParam("Query object selecting categories to delete"),
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			query := queryArg(args, "query")
			categories, err := deps.Store.Find(ctx, collectionCategories, query, storex.Doc{"_id": 1})
			if err != nil {
				return contractx.Outcome{}, err
			}
			if len(categories) == 0 {
				return contractx.Outcome{Success: true, Message: "Deleted 0 categories"}, nil
			}

			ids := make([]any, 0, len(categories))
			for _, c := range categories {
				if id, ok := c["_id"].(string); ok {
					ids = append(ids, id)
				}
			}
			products, err := deps.Store.DeleteMany(ctx, collectionProducts, storex.Doc{
				"category_id": storex.Doc{"$in": ids},
			})
			if err != nil {
				return contractx.Outcome{}, err
			}
			deleted, err := deps.Store.DeleteMany(ctx, collectionCategories, query)
			if err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Deleted %d categories and %d products under them", deleted.Deleted, products.Deleted),
				Data:    storex.Doc{"categories_deleted": deleted.Deleted, "products_deleted": products.Deleted},
			}, nil
		},
	}
}

func deleteCapability(deps Deps, name, desc, collection, noun string) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name: name,
			Desc: desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": queryParam("Query object selecting documents to delete"),
			}),
		},
		Run: func(ctx context.Context, args map[string]any) (contractx.Outcome, error) {
			result, err := deps.Store.DeleteMany(ctx, collection, queryArg(args, "query"))
			if err != nil {
				return contractx.Outcome{}, err
			}
			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Deleted %d %s", result.Deleted, noun),
				Data:    result,
			}, nil
		},
	}
}

func sumProductPrices(ctx context.Context, deps Deps, productIDs []string) (float64, error) {
	total := 0.0
	for _, pid := range productIDs {
		docs, err := deps.Store.Find(ctx, collectionProducts, storex.Doc{"_id": pid}, nil)
		if err != nil {
			return 0, err
		}
		if len(docs) == 0 {
			continue
		}
		if price, ok := numberArg(docs[0], "price"); ok {
			total += price
		}
	}
	return total, nil
}
