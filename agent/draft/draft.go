// Package draft implements the per-user pending-order aggregate (the cart)
// and its finalize saga. One cart document exists per user id, created
// lazily on first select.
package draft

import (
	"context"
	"fmt"
	"strings"
	"time"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

const (
	CollectionCarts    = "carts"
	CollectionProducts = "products"
	CollectionOrders   = "orders"

	OrderStatusPending = "pending"
)

var (
	ErrNothingToFinalize = fmt.Errorf("%w: nothing to finalize", contractx.ErrDraftState)
	ErrNoValidItems      = fmt.Errorf("%w: no valid items in cart", contractx.ErrDraftState)
)

// Item is one cart line: a product reference and a positive quantity.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Line is a resolved cart line as reported by View. Resolved is false when
// the referenced product no longer exists.
type Line struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Resolved  bool    `json:"resolved"`
}

// Summary is the caller-facing view of a cart.
type Summary struct {
	Lines []Line  `json:"lines"`
	Total float64 `json:"total"`
}

// Receipt is the terminal output of a successful finalize.
type Receipt struct {
	OrderID    string   `json:"order_id"`
	Total      float64  `json:"total"`
	ProductIDs []string `json:"product_ids"`
	Skipped    []string `json:"skipped,omitempty"`
}

type Service struct {
	store storex.Store
	now   func() time.Time
}

func NewService(st storex.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Select adds quantity units of a product to the user's cart, creating the
// cart when absent and incrementing the line when the product is already
// selected.
func (s *Service) Select(ctx context.Context, userID, productID string, quantity int) (Item, error) {
	if strings.TrimSpace(productID) == "" {
		return Item{}, fmt.Errorf("%w: product id is required", contractx.ErrValidation)
	}
	if quantity < 1 {
		return Item{}, fmt.Errorf("%w: quantity must be at least 1", contractx.ErrValidation)
	}

	cart, items, err := s.load(ctx, userID)
	if err != nil {
		return Item{}, err
	}

	updated := Item{ProductID: productID, Quantity: quantity}
	found := false
	for i, item := range items {
		if item.ProductID == productID {
			items[i].Quantity += quantity
			updated = items[i]
			found = true
			break
		}
	}
	if !found {
		items = append(items, updated)
	}

	if err := s.save(ctx, userID, cart, items); err != nil {
		return Item{}, err
	}
	return updated, nil
}

// Unselect removes a product line. A missing cart or product is a no-op.
func (s *Service) Unselect(ctx context.Context, userID, productID string) (bool, error) {
	cart, items, err := s.load(ctx, userID)
	if err != nil {
		return false, err
	}
	if cart == nil {
		return false, nil
	}

	kept := items[:0]
	removed := false
	for _, item := range items {
		if item.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return false, nil
	}

	if err := s.save(ctx, userID, cart, kept); err != nil {
		return false, err
	}
	return true, nil
}

// View resolves every cart line against the product catalog. An absent or
// empty cart reports zero lines; it is not an error.
func (s *Service) View(ctx context.Context, userID string) (Summary, error) {
	_, items, err := s.load(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Lines: make([]Line, 0, len(items))}
	for _, item := range items {
		line := Line{ProductID: item.ProductID, Quantity: item.Quantity}
		product, err := s.lookupProduct(ctx, item.ProductID)
		if err != nil {
			return Summary{}, err
		}
		if product != nil {
			line.Resolved = true
			line.Name, _ = product["name"].(string)
			line.Price = asFloat(product["price"])
			summary.Total += line.Price * float64(line.Quantity)
		}
		summary.Lines = append(summary.Lines, line)
	}
	return summary, nil
}

// Clear empties the cart. Clearing an absent or already-empty cart succeeds.
func (s *Service) Clear(ctx context.Context, userID string) error {
	cart, _, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if cart == nil {
		return nil
	}
	return s.save(ctx, userID, cart, nil)
}

// Finalize drains the cart into a pending order. The total is computed from
// current product prices. The order is created before the cart is emptied:
// a crash between the two risks a duplicate order rather than a silently
// lost one. If order creation fails the cart is left untouched.
func (s *Service) Finalize(ctx context.Context, userID string) (Receipt, error) {
	cart, items, err := s.load(ctx, userID)
	if err != nil {
		return Receipt{}, err
	}
	if cart == nil || len(items) == 0 {
		return Receipt{}, ErrNothingToFinalize
	}

	valid := make([]Item, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity < 1 {
			continue
		}
		valid = append(valid, item)
	}
	if len(valid) == 0 {
		return Receipt{}, ErrNoValidItems
	}

	receipt := Receipt{}
	for _, item := range valid {
		product, err := s.lookupProduct(ctx, item.ProductID)
		if err != nil {
			return Receipt{}, err
		}
		if product == nil {
			receipt.Skipped = append(receipt.Skipped, item.ProductID)
			continue
		}
		receipt.Total += asFloat(product["price"]) * float64(item.Quantity)
		for i := 0; i < item.Quantity; i++ {
			receipt.ProductIDs = append(receipt.ProductIDs, item.ProductID)
		}
	}
	if len(receipt.ProductIDs) == 0 {
		return Receipt{}, ErrNoValidItems
	}

	productIDs := make([]any, 0, len(receipt.ProductIDs))
	for _, id := range receipt.ProductIDs {
		productIDs = append(productIDs, id)
	}
	orderID, err := s.store.InsertOne(ctx, CollectionOrders, storex.Stamp(storex.Doc{
		"user_id":      userID,
		"product_ids":  productIDs,
		"total_price":  receipt.Total,
		"order_status": OrderStatusPending,
	}, s.now()))
	if err != nil {
		return Receipt{}, err
	}
	receipt.OrderID = orderID

	if err := s.save(ctx, userID, cart, nil); err != nil {
		return Receipt{}, fmt.Errorf("order %s created but cart not emptied: %w", orderID, err)
	}
	return receipt, nil
}

func (s *Service) load(ctx context.Context, userID string) (storex.Doc, []Item, error) {
	docs, err := s.store.Find(ctx, CollectionCarts, storex.Doc{"user_id": userID}, nil)
	if err != nil {
		return nil, nil, err
	}
	if len(docs) == 0 {
		return nil, nil, nil
	}
	cart := docs[0]

	raw, _ := cart["items"].([]any)
	items := make([]Item, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["product_id"].(string)
		items = append(items, Item{ProductID: id, Quantity: int(asFloat(m["quantity"]))})
	}
	return cart, items, nil
}

func (s *Service) save(ctx context.Context, userID string, cart storex.Doc, items []Item) error {
	encoded := make([]any, 0, len(items))
	for _, item := range items {
		encoded = append(encoded, map[string]any{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
		})
	}

	if cart == nil {
		_, err := s.store.InsertOne(ctx, CollectionCarts, storex.Stamp(storex.Doc{
			"user_id": userID,
			"items":   encoded,
		}, s.now()))
		return err
	}

	_, err := s.store.UpdateMany(ctx, CollectionCarts,
		storex.Doc{"user_id": userID},
		storex.Touch(storex.Doc{"items": encoded}, s.now()),
	)
	return err
}

func (s *Service) lookupProduct(ctx context.Context, productID string) (storex.Doc, error) {
	docs, err := s.store.Find(ctx, CollectionProducts, storex.Doc{"_id": productID}, nil)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	default:
		return 0
	}
}
