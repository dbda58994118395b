// Package capability builds the role-scoped operation registry bound to a
// single caller. The registry is assembled once per turn by a pure factory;
// authorization is the shape of the list itself, not a runtime check.
package capability

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	draftx "github.com/shoptalklabs/shoptalk/agent/draft"
	promptx "github.com/shoptalklabs/shoptalk/agent/prompt"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

const (
	collectionProducts   = "products"
	collectionCategories = "categories"
	collectionOrders     = "orders"
	collectionUsers      = "users"
)

// Capability is one named operation: its schema as advertised to the
// planner and the executor that runs it.
type Capability struct {
	Info *schema.ToolInfo
	Run  func(ctx context.Context, args map[string]any) (contractx.Outcome, error)
}

// Deps carries everything capability executors may touch.
type Deps struct {
	Store   storex.Store
	Drafts  *draftx.Service
	Queries contractx.QueryGenerator
	Now     func() time.Time
}

// Registry is the immutable capability list for one caller.
type Registry struct {
	caps  []Capability
	index map[string]int
}

// New builds the registry for the caller's role. Admins get the full
// management set; users get catalog reads scoped to themselves plus their
// cart. The factory has no side effects; nothing is registered later.
func New(deps Deps, caller contractx.Caller) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	var caps []Capability
	if caller.Role == contractx.RoleAdmin {
		caps = adminCapabilities(deps, caller)
	} else {
		caps = userCapabilities(deps, caller)
	}

	index := make(map[string]int, len(caps))
	for i, c := range caps {
		index[c.Info.Name] = i
	}
	return &Registry{caps: caps, index: index}
}

// List returns the capabilities in registration order.
func (r *Registry) List() []Capability {
	out := make([]Capability, len(r.caps))
	copy(out, r.caps)
	return out
}

// Lookup resolves a capability by name. A miss is a typed miss, never a
// panic: the planner can propose names the role was never given.
func (r *Registry) Lookup(name string) (Capability, bool) {
	i, ok := r.index[name]
	if !ok {
		return Capability{}, false
	}
	return r.caps[i], true
}

// ToolInfos returns the schemas bound to the planner model.
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.caps))
	for _, c := range r.caps {
		infos = append(infos, c.Info)
	}
	return infos
}

// Summaries returns the one-line listing substituted into the system
// prompt.
func (r *Registry) Summaries() []promptx.CapabilitySummary {
	out := make([]promptx.CapabilitySummary, 0, len(r.caps))
	for _, c := range r.caps {
		out = append(out, promptx.CapabilitySummary{Name: c.Info.Name, Description: c.Info.Desc})
	}
	return out
}

func adminCapabilities(deps Deps, caller contractx.Caller) []Capability {
	return []Capability{
		insertCategory(deps),
		insertProduct(deps),
		insertOrder(deps),
		insertUser(deps),
		updateProduct(deps),
		updateCategory(deps),
		updateOrder(deps),
		updateUser(deps),
		deleteOrder(deps),
		deleteUser(deps),
		deleteCategory(deps),
		deleteProduct(deps),
		getUserInfo(deps, caller),
		getOrderInfo(deps, caller),
		getProductInfo(deps),
		getCategoryInfo(deps),
		findUsers(deps),
		findOrders(deps),
		findCategories(deps),
		findProducts(deps),
		getCollectionInfo(deps),
		sampleData(deps),
		generateQuery(deps),
	}
}

func userCapabilities(deps Deps, caller contractx.Caller) []Capability {
	return []Capability{
		getUserInfo(deps, caller),
		getOrderInfo(deps, caller),
		getProductInfo(deps),
		getCategoryInfo(deps),
		findCategories(deps),
		findProducts(deps),
		addToCart(deps, caller),
		removeFromCart(deps, caller),
		viewCart(deps, caller),
		clearCart(deps, caller),
		placeOrder(deps, caller),
	}
}

func queryArg(args map[string]any, key string) storex.Doc {
	if m, ok := args[key].(map[string]any); ok {
		return m
	}
	return storex.Doc{}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func numberArg(args map[string]any, key string) (float64, bool) {
	switch t := args[key].(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func intArg(args map[string]any, key string) (int, bool) {
	n, ok := numberArg(args, key)
	if !ok {
		return 0, false
	}
	return int(n), true
}

func stringListArg(args map[string]any, key string) []string {
	switch t := args[key].(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

func queryParam(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.Object, Desc: desc, Required: true}
}
