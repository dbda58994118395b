package capability

import (
	"context"
	"strings"
	"testing"
	"time"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	draftx "github.com/shoptalklabs/shoptalk/agent/draft"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

type fakeQueryGen struct {
	query contractx.GeneratedQuery
	err   error
	seen  []string
}

func (f *fakeQueryGen) GenerateQuery(ctx context.Context, text string) (contractx.GeneratedQuery, error) {
	f.seen = append(f.seen, text)
	if f.err != nil {
		return contractx.GeneratedQuery{}, f.err
	}
	return f.query, nil
}

func newDeps(t *testing.T) (Deps, *storex.MemoryStore) {
	t.Helper()
	st := storex.NewMemoryStore()
	return Deps{
		Store:   st,
		Drafts:  draftx.NewService(st),
		Queries: &fakeQueryGen{},
		Now:     func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	}, st
}

func run(t *testing.T, r *Registry, name string, args map[string]any) contractx.Outcome {
	t.Helper()
	cap, ok := r.Lookup(name)
	if !ok {
		t.Fatalf("capability %q not registered", name)
	}
	out, err := cap.Run(context.Background(), args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return out
}

var adminNames = []string{
	"insert_category", "insert_product", "insert_order", "insert_user",
	"update_product", "update_category", "update_order", "update_user",
	"delete_order", "delete_user", "delete_category", "delete_product",
	"get_user_info", "get_order_info", "get_product_info", "get_category_info",
	"find_users", "find_orders", "find_categories", "find_products",
	"get_collection_info", "sample_data", "generate_query",
}

var userNames = []string{
	"get_user_info", "get_order_info", "get_product_info", "get_category_info",
	"find_categories", "find_products",
	"add_to_cart", "remove_from_cart", "view_cart", "clear_cart", "place_order",
}

func TestAdminRegistryNames(t *testing.T) {
	deps, _ := newDeps(t)
	r := New(deps, contractx.Caller{ID: "a1", Role: contractx.RoleAdmin})

	caps := r.List()
	if len(caps) != len(adminNames) {
		t.Fatalf("capabilities = %d, want %d", len(caps), len(adminNames))
	}
	for i, want := range adminNames {
		if caps[i].Info.Name != want {
			t.Fatalf("capability[%d] = %s, want %s", i, caps[i].Info.Name, want)
		}
	}
}

func TestUserRegistryNames(t *testing.T) {
	deps, _ := newDeps(t)
	r := New(deps, contractx.Caller{ID: "u1", Role: contractx.RoleUser})

	caps := r.List()
	if len(caps) != len(userNames) {
		t.Fatalf("capabilities = %d, want %d", len(caps), len(userNames))
	}
	for i, want := range userNames {
		if caps[i].Info.Name != want {
			t.Fatalf("capability[%d] = %s, want %s", i, caps[i].Info.Name, want)
		}
	}
	for _, forbidden := range []string{"insert_product", "delete_user", "find_users", "update_order", "sample_data", "generate_query"} {
		if _, ok := r.Lookup(forbidden); ok {
			t.Fatalf("user registry must not contain %s", forbidden)
		}
	}
}

func TestLookupMiss(t *testing.T) {
	deps, _ := newDeps(t)
	r := New(deps, contractx.Caller{ID: "u1", Role: contractx.RoleUser})

	if _, ok := r.Lookup("drop_database"); ok {
		t.Fatal("unknown name must miss")
	}
}

func TestGetUserInfoSelfScoped(t *testing.T) {
	deps, st := newDeps(t)
	ctx := context.Background()

	selfID, err := st.InsertOne(ctx, collectionUsers, storex.Doc{"name": "Alice", "email": "a@x.io", "password": "hash-a"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := st.InsertOne(ctx, collectionUsers, storex.Doc{"name": "Bob", "email": "b@x.io", "password": "hash-b"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := New(deps, contractx.Caller{ID: selfID, Role: contractx.RoleUser})
	out := run(t, r, "get_user_info", map[string]any{"query": map[string]any{"name": "Bob"}})

	docs, ok := out.Data.([]storex.Doc)
	if !ok || len(docs) != 1 {
		t.Fatalf("data = %#v, want the caller's single document", out.Data)
	}
	if docs[0]["name"] != "Alice" {
		t.Fatalf("leaked another user's document: %v", docs[0])
	}
	if _, has := docs[0]["password"]; has {
		t.Fatal("password must be stripped")
	}
}

func TestGetOrderInfoOwnerScoped(t *testing.T) {
	deps, st := newDeps(t)
	ctx := context.Background()

	if _, err := st.InsertOne(ctx, collectionOrders, storex.Doc{"user_id": "u1", "total_price": 100.0}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := st.InsertOne(ctx, collectionOrders, storex.Doc{"user_id": "u2", "total_price": 999.0}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := New(deps, contractx.Caller{ID: "u1", Role: contractx.RoleUser})
	out := run(t, r, "get_order_info", map[string]any{"query": map[string]any{}})

	docs := out.Data.([]storex.Doc)
	if len(docs) != 1 || docs[0]["user_id"] != "u1" {
		t.Fatalf("orders = %#v, want only the caller's", docs)
	}

	admin := New(deps, contractx.Caller{ID: "a1", Role: contractx.RoleAdmin})
	out = run(t, admin, "get_order_info", map[string]any{"query": map[string]any{}})
	if len(out.Data.([]storex.Doc)) != 2 {
		t.Fatal("admin must see all orders")
	}
}

func TestInsertProductCreatesMissingCategory(t *testing.T) {
	deps, st := newDeps(t)
	r := New(deps, contractx.Caller{ID: "a1", Role: contractx.RoleAdmin})

	out := run(t, r, "insert_product", map[string]any{
		"name": "Laptop", "price": float64(8000), "category_name": "Electronics",
	})
	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(out.Message, "was created first") {
		t.Fatalf("creation not reported: %q", out.Message)
	}

	cats, err := st.Find(context.Background(), collectionCategories, storex.Doc{"name": "Electronics"}, nil)
	if err != nil || len(cats) != 1 {
		t.Fatalf("category docs=%d err=%v", len(cats), err)
	}
	products, _ := st.Find(context.Background(), collectionProducts, storex.Doc{"name": "Laptop"}, nil)
	if products[0]["category_id"] != cats[0]["_id"] {
		t.Fatal("product must reference the created category id")
	}
}

func TestInsertProductResolvesExistingCategory(t *testing.T) {
	deps, st := newDeps(t)
	ctx := context.Background()
	catID, err := st.InsertOne(ctx, collectionCategories, storex.Doc{"name": "Electronics"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := New(deps, contractx.Caller{ID: "a1", Role: contractx.RoleAdmin})
	out := run(t, r, "insert_product", map[string]any{
		"name": "Smart Watch", "price": float64(8000), "category_name": "Electronics",
	})
	if strings.Contains(out.Message, "created first") {
		t.Fatalf("existing category must not be re-created: %q", out.Message)
	}

	products, _ := st.Find(ctx, collectionProducts, storex.Doc{"name": "Smart Watch"}, nil)
	if products[0]["category_id"] != catID {
		t.Fatalf("category_id = %v, want %s", products[0]["category_id"], catID)
	}
}

func TestInsertOrderResolvesAndReports(t *testing.T) {
	deps, st := newDeps(t)
	ctx := context.Background()
	pid, err := st.InsertOne(ctx, collectionProducts, storex.Doc{"name": "Garden Hose", "price": 800.0})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := New(deps, contractx.Caller{ID: "a1", Role: contractx.RoleAdmin})
	out := run(t, r, "insert_order", map[string]any{
		"user_name":     "Charlie",
		"product_names": []any{"Garden Hose", "Phantom Widget"},
	})
	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(out.Message, `User "Charlie" did not exist`) {
		t.Fatalf("user creation not reported: %q", out.Message)
	}
	if !strings.Contains(out.Message, "Phantom Widget") {
		t.Fatalf("missing product not reported: %q", out.Message)
	}

	orders, _ := st.Find(ctx, collectionOrders, storex.Doc{}, nil)
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	if total, _ := orders[0]["total_price"].(float64); total != 800 {
		t.Fatalf("total = %v, want computed 800", orders[0]["total_price"])
	}
	ids := orders[0]["product_ids"].([]any)
	if len(ids) != 1 || ids[0] != pid {
		t.Fatalf("product_ids = %v", ids)
	}

	users, _ := st.Find(ctx, collectionUsers, storex.Doc{"name": "Charlie"}, nil)
	if len(users) != 1 {
		t.Fatal("referenced user must have been created")
	}
}

func TestInsertOrderNoValidProducts(t *testing.T) {
	deps, _ := newDeps(t)
	r := New(deps, contractx.Caller{ID: "a1", Role: contractx.RoleAdmin})

	out := run(t, r, "insert_order", map[string]any{
		"user_name":     "Charlie",
		"product_names": []any{"Phantom Widget"},
	})
	if out.Success {
		t.Fatalf("outcome = %+v, want failure", out)
	}
}

func TestInsertUserHashesPassword(t *testing.T) {
	deps, st := newDeps(t)
	r := New(deps, contractx.Caller{ID: "a1", Role: contractx.RoleAdmin})

	out := run(t, r, "insert_user", map[string]any{
		"name": "Dana", "email": "dana@x.io", "password": "plain-secret",
	})
	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}

	users, _ := st.Find(context.Background(), collectionUsers, storex.Doc{"name": "Dana"}, nil)
	stored, _ := users[0]["password"].(string)
	if stored == "plain-secret" || stored == "" {
		t.Fatal("password must be stored hashed")
	}
	if users[0]["role"] != "user" {
		t.Fatalf("role = %v, want default user", users[0]["role"])
	}
}

func TestUpdateUserHashesPassword(t *testing.T) {
	deps, st := newDeps(t)
	ctx := context.Background()
	if _, err := st.InsertOne(ctx, collectionUsers, storex.Doc{"name": "Dana", "password": "old-hash"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := New(deps, contractx.Caller{ID: "a1", Role: contractx.RoleAdmin})
	out := run(t, r, "update_user", map[string]any{
		"query":  map[string]any{"name": "Dana"},
		"update": map[string]any{"password": "new-secret"},
	})
	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}

	users, _ := st.Find(ctx, collectionUsers, storex.Doc{"name": "Dana"}, nil)
	stored, _ := users[0]["password"].(string)
	if stored == "new-secret" || stored == "old-hash" {
		t.Fatalf("password = %q, want a fresh hash", stored)
	}
}

func TestDeleteCategoryCascades(t *testing.T) {
	deps, st := newDeps(t)
	ctx := context.Background()

	catID, _ := st.InsertOne(ctx, collectionCategories, storex.Doc{"name": "Electronics"})
	otherID, _ := st.InsertOne(ctx, collectionCategories, storex.Doc{"name": "Home & Garden"})
	st.InsertOne(ctx, collectionProducts, storex.Doc{"name": "Laptop", "category_id": catID})
	st.InsertOne(ctx, collectionProducts, storex.Doc{"name": "Smart Watch", "category_id": catID})
	st.InsertOne(ctx, collectionProducts, storex.Doc{"name": "Garden Hose", "category_id": otherID})

	r := New(deps, contractx.Caller{ID: "a1", Role: contractx.RoleAdmin})
	out := run(t, r, "delete_category", map[string]any{
		"query": map[string]any{"name": "Electronics"},
	})
	if !strings.Contains(out.Message, "1 categories and 2 products") {
		t.Fatalf("message = %q", out.Message)
	}

	products, _ := st.Find(ctx, collectionProducts, storex.Doc{}, nil)
	if len(products) != 1 || products[0]["name"] != "Garden Hose" {
		t.Fatalf("surviving products = %#v", products)
	}
}

func TestCartCapabilities(t *testing.T) {
	deps, st := newDeps(t)
	ctx := context.Background()
	pid, _ := st.InsertOne(ctx, collectionProducts, storex.Doc{"name": "Wireless Headphones", "price": 2500.0})

	r := New(deps, contractx.Caller{ID: "u1", Role: contractx.RoleUser})

	out := run(t, r, "add_to_cart", map[string]any{"product_name": "Nope"})
	if out.Success {
		t.Fatalf("unknown product: outcome = %+v, want failure", out)
	}

	out = run(t, r, "add_to_cart", map[string]any{"product_id": pid, "quantity": float64(2)})
	if !out.Success {
		t.Fatalf("add_to_cart: %+v", out)
	}

	out = run(t, r, "view_cart", nil)
	summary := out.Data.(draftx.Summary)
	if len(summary.Lines) != 1 || summary.Total != 5000 {
		t.Fatalf("summary = %+v", summary)
	}

	out = run(t, r, "place_order", nil)
	if !out.Success {
		t.Fatalf("place_order: %+v", out)
	}

	out = run(t, r, "place_order", nil)
	if out.Success {
		t.Fatal("second place_order on empty cart must fail")
	}

	out = run(t, r, "remove_from_cart", map[string]any{"product_id": pid})
	if out.Success {
		t.Fatal("removing from empty cart must report no change")
	}
}

func TestGenerateQueryRunsAgainstStore(t *testing.T) {
	deps, st := newDeps(t)
	ctx := context.Background()
	st.InsertOne(ctx, collectionProducts, storex.Doc{"name": "Garden Hose", "price": 800.0})
	st.InsertOne(ctx, collectionProducts, storex.Doc{"name": "Smart Watch", "price": 8000.0})

	gen := &fakeQueryGen{query: contractx.GeneratedQuery{
		Filter:     map[string]any{"price": map[string]any{"$lt": float64(1000)}},
		Projection: map[string]any{},
	}}
	deps.Queries = gen

	r := New(deps, contractx.Caller{ID: "a1", Role: contractx.RoleAdmin})
	out := run(t, r, "generate_query", map[string]any{"text": "products under 1000"})
	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}

	data := out.Data.(storex.Doc)
	if data["count"] != 1 {
		t.Fatalf("count = %v, want 1", data["count"])
	}
	if len(gen.seen) != 1 || gen.seen[0] != "products under 1000" {
		t.Fatalf("generator saw %v", gen.seen)
	}
}

func TestSampleDataLinksCategories(t *testing.T) {
	deps, st := newDeps(t)
	r := New(deps, contractx.Caller{ID: "a1", Role: contractx.RoleAdmin})

	out := run(t, r, "sample_data", nil)
	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}

	ctx := context.Background()
	cats, _ := st.Find(ctx, collectionCategories, storex.Doc{}, nil)
	products, _ := st.Find(ctx, collectionProducts, storex.Doc{}, nil)
	if len(cats) != 3 || len(products) != 5 {
		t.Fatalf("seeded %d categories, %d products", len(cats), len(products))
	}

	ids := map[any]bool{}
	for _, c := range cats {
		ids[c["_id"]] = true
	}
	for _, p := range products {
		if !ids[p["category_id"]] {
			t.Fatalf("product %v references unknown category %v", p["name"], p["category_id"])
		}
	}
}
