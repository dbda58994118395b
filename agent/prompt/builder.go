package prompt

import (
	"fmt"
	"strings"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
)

// CapabilitySummary is the one-line operation listing substituted into the
// system prompt alongside the bound tool schemas.
type CapabilitySummary struct {
	Name        string
	Description string
}

const adminRules = `- The user can perform all operations (insert, update, delete, find).`

const userRules = `- Allowed:
  - Find/search/view products, categories, and their own orders.
  - Manage their own cart (add, remove, view, clear) and place orders from it.
  - View their own user profile.
- Not allowed:
  - Add/update/delete any products.
  - Add/update/delete any categories.
  - Add/update/delete any users.
  - Access or modify orders or carts belonging to other users.
- If the user requests any restricted operation:
  - Reply strictly with: "I'm sorry, you are not authorized to perform this operation."
  - Do NOT attempt or suggest using any operation for such restricted requests.`

// BuildInstructions renders the role-scoped system prompt. The capability
// listing mirrors exactly the operations bound for this caller; the prompt
// never advertises an operation the registry would refuse.
func BuildInstructions(set PromptSet, role contractx.Role, capabilities []CapabilitySummary) string {
	rules := userRules
	if role == contractx.RoleAdmin {
		rules = adminRules
	}

	var listing strings.Builder
	for _, cap := range capabilities {
		fmt.Fprintf(&listing, "- %s: %s\n", cap.Name, cap.Description)
	}

	return strings.NewReplacer(
		"{{role_rules}}", rules,
		"{{capabilities}}", strings.TrimRight(listing.String(), "\n"),
	).Replace(set.System)
}
