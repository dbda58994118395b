package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

func newService(t *testing.T) (*Service, *storex.MemoryStore) {
	t.Helper()
	st := storex.NewMemoryStore()
	svc := NewService(st)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, st
}

func seedProduct(t *testing.T, st *storex.MemoryStore, name string, price float64) string {
	t.Helper()
	id, err := st.InsertOne(context.Background(), CollectionProducts, storex.Doc{
		"name": name, "price": price,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return id
}

func TestSelectCreatesCartLazily(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	pid := seedProduct(t, st, "Wireless Headphones", 2500)

	item, err := svc.Select(ctx, "u1", pid, 2)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if item.Quantity != 2 {
		t.Fatalf("quantity = %d, want 2", item.Quantity)
	}

	carts, err := st.Find(ctx, CollectionCarts, storex.Doc{"user_id": "u1"}, nil)
	if err != nil {
		t.Fatalf("Find carts: %v", err)
	}
	if len(carts) != 1 {
		t.Fatalf("carts = %d, want 1", len(carts))
	}
}

func TestSelectIncrementsExistingLine(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	pid := seedProduct(t, st, "Garden Hose", 450)

	if _, err := svc.Select(ctx, "u1", pid, 2); err != nil {
		t.Fatalf("first Select: %v", err)
	}
	item, err := svc.Select(ctx, "u1", pid, 3)
	if err != nil {
		t.Fatalf("second Select: %v", err)
	}
	if item.Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", item.Quantity)
	}

	summary, err := svc.View(ctx, "u1")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(summary.Lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(summary.Lines))
	}
}

func TestSelectValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Select(ctx, "u1", "", 1); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("empty product id: err = %v, want ErrValidation", err)
	}
	if _, err := svc.Select(ctx, "u1", "p1", 0); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("zero quantity: err = %v, want ErrValidation", err)
	}
}

func TestUnselect(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	pid := seedProduct(t, st, "Running Shoes", 800)

	if removed, err := svc.Unselect(ctx, "u1", pid); err != nil || removed {
		t.Fatalf("unselect without cart: removed=%v err=%v", removed, err)
	}

	if _, err := svc.Select(ctx, "u1", pid, 1); err != nil {
		t.Fatalf("Select: %v", err)
	}
	removed, err := svc.Unselect(ctx, "u1", pid)
	if err != nil || !removed {
		t.Fatalf("unselect existing: removed=%v err=%v", removed, err)
	}
	if removed, _ := svc.Unselect(ctx, "u1", pid); removed {
		t.Fatal("second unselect should be a no-op")
	}
}

func TestViewResolvesLines(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	pid := seedProduct(t, st, "Wireless Headphones", 2500)

	if _, err := svc.Select(ctx, "u1", pid, 2); err != nil {
		t.Fatalf("Select: %v", err)
	}
	summary, err := svc.View(ctx, "u1")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if summary.Total != 5000 {
		t.Fatalf("total = %v, want 5000", summary.Total)
	}
	if !summary.Lines[0].Resolved || summary.Lines[0].Name != "Wireless Headphones" {
		t.Fatalf("line not resolved: %+v", summary.Lines[0])
	}
}

func TestViewMarksMissingProducts(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	pid := seedProduct(t, st, "Garden Hose", 450)

	if _, err := svc.Select(ctx, "u1", pid, 1); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, err := st.DeleteMany(ctx, CollectionProducts, storex.Doc{"_id": pid}); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	summary, err := svc.View(ctx, "u1")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if summary.Lines[0].Resolved {
		t.Fatal("deleted product should be unresolved")
	}
	if summary.Total != 0 {
		t.Fatalf("total = %v, want 0", summary.Total)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	pid := seedProduct(t, st, "Laptop", 8000)

	if err := svc.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear absent cart: %v", err)
	}
	if _, err := svc.Select(ctx, "u1", pid, 1); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := svc.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := svc.Clear(ctx, "u1"); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	summary, err := svc.View(ctx, "u1")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(summary.Lines) != 0 {
		t.Fatalf("lines = %d, want 0", len(summary.Lines))
	}
}

func TestFinalize(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	shoes := seedProduct(t, st, "Running Shoes", 100)
	hose := seedProduct(t, st, "Garden Hose", 50)

	if _, err := svc.Select(ctx, "u1", shoes, 2); err != nil {
		t.Fatalf("Select shoes: %v", err)
	}
	if _, err := svc.Select(ctx, "u1", hose, 1); err != nil {
		t.Fatalf("Select hose: %v", err)
	}

	receipt, err := svc.Finalize(ctx, "u1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if receipt.Total != 250 {
		t.Fatalf("total = %v, want 250", receipt.Total)
	}
	if len(receipt.ProductIDs) != 3 {
		t.Fatalf("product ids = %d, want 3 (repeated by quantity)", len(receipt.ProductIDs))
	}

	orders, err := st.Find(ctx, CollectionOrders, storex.Doc{"_id": receipt.OrderID}, nil)
	if err != nil || len(orders) != 1 {
		t.Fatalf("order lookup: docs=%d err=%v", len(orders), err)
	}
	if orders[0]["order_status"] != OrderStatusPending {
		t.Fatalf("order status = %v, want pending", orders[0]["order_status"])
	}

	summary, err := svc.View(ctx, "u1")
	if err != nil {
		t.Fatalf("View after finalize: %v", err)
	}
	if len(summary.Lines) != 0 {
		t.Fatal("cart should be empty after finalize")
	}
}

func TestFinalizeEmptyCart(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Finalize(ctx, "u1"); !errors.Is(err, ErrNothingToFinalize) {
		t.Fatalf("err = %v, want ErrNothingToFinalize", err)
	}
}

func TestFinalizeSkipsMissingProducts(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	kept := seedProduct(t, st, "Laptop", 8000)
	gone := seedProduct(t, st, "Phantom", 999)

	if _, err := svc.Select(ctx, "u1", kept, 1); err != nil {
		t.Fatalf("Select kept: %v", err)
	}
	if _, err := svc.Select(ctx, "u1", gone, 1); err != nil {
		t.Fatalf("Select gone: %v", err)
	}
	if _, err := st.DeleteMany(ctx, CollectionProducts, storex.Doc{"_id": gone}); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	receipt, err := svc.Finalize(ctx, "u1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if receipt.Total != 8000 {
		t.Fatalf("total = %v, want 8000", receipt.Total)
	}
	if len(receipt.Skipped) != 1 || receipt.Skipped[0] != gone {
		t.Fatalf("skipped = %v, want [%s]", receipt.Skipped, gone)
	}
}

func TestFinalizeAllMissingProducts(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	pid := seedProduct(t, st, "Phantom", 999)

	if _, err := svc.Select(ctx, "u1", pid, 1); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, err := st.DeleteMany(ctx, CollectionProducts, storex.Doc{"_id": pid}); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	if _, err := svc.Finalize(ctx, "u1"); !errors.Is(err, ErrNoValidItems) {
		t.Fatalf("err = %v, want ErrNoValidItems", err)
	}
}

// failingOrderStore rejects order inserts so the test can observe that a
// failed finalize leaves the cart untouched.
type failingOrderStore struct {
	storex.Store
}

var errInsertRejected = errors.New("insert rejected")

func (f *failingOrderStore) InsertOne(ctx context.Context, collection string, doc storex.Doc) (string, error) {
	if collection == CollectionOrders {
		return "", errInsertRejected
	}
	return f.Store.InsertOne(ctx, collection, doc)
}

func TestFinalizeFailureLeavesCartUntouched(t *testing.T) {
	mem := storex.NewMemoryStore()
	svc := NewService(&failingOrderStore{Store: mem})
	svc.now = time.Now
	ctx := context.Background()

	pid, err := mem.InsertOne(ctx, CollectionProducts, storex.Doc{"name": "Laptop", "price": 8000})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := svc.Select(ctx, "u1", pid, 1); err != nil {
		t.Fatalf("Select: %v", err)
	}

	if _, err := svc.Finalize(ctx, "u1"); !errors.Is(err, errInsertRejected) {
		t.Fatalf("err = %v, want errInsertRejected", err)
	}

	summary, err := svc.View(ctx, "u1")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(summary.Lines) != 1 {
		t.Fatalf("cart lines = %d, want 1 (untouched)", len(summary.Lines))
	}
}
