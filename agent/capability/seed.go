package capability

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

var sampleCategories = []string{"Electronics", "Health & Beauty", "Home & Garden"}

var sampleProducts = []struct {
	Name     string
	Price    float64
	Category string
}{
	{"Wireless Headphones", 2500, "Electronics"},
	{"Electric Toothbrush", 1500, "Health & Beauty"},
	{"Smart Watch", 8000, "Electronics"},
	{"Garden Hose", 800, "Home & Garden"},
	{"Face Moisturizer", 450, "Health & Beauty"},
}

// sampleData seeds the demo catalog. Product category references are the
// inserted category ids, so joins work on the seeded data.
func sampleData(deps Deps) Capability {
	return Capability{
		Info: &schema.ToolInfo{
			Name:        "sample_data",
			Desc:        "Initialize sample data in the database for testing purposes",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		Run: func(ctx context.Context, _ map[string]any) (contractx.Outcome, error) {
			now := deps.Now()

			categoryDocs := make([]storex.Doc, 0, len(sampleCategories))
			for _, name := range sampleCategories {
				categoryDocs = append(categoryDocs, storex.Stamp(storex.Doc{"name": name}, now))
			}
			categoryIDs, err := deps.Store.InsertMany(ctx, collectionCategories, categoryDocs)
			if err != nil {
				return contractx.Outcome{}, err
			}
			idByName := make(map[string]string, len(sampleCategories))
			for i, name := range sampleCategories {
				if i < len(categoryIDs) {
					idByName[name] = categoryIDs[i]
				}
			}

			productDocs := make([]storex.Doc, 0, len(sampleProducts))
			for _, p := range sampleProducts {
				productDocs = append(productDocs, storex.Stamp(storex.Doc{
					"name":        p.Name,
					"price":       p.Price,
					"category_id": idByName[p.Category],
				}, now))
			}
			if _, err := deps.Store.InsertMany(ctx, collectionProducts, productDocs); err != nil {
				return contractx.Outcome{}, err
			}

			return contractx.Outcome{
				Success: true,
				Message: fmt.Sprintf("Sample data initialized: %d categories, %d products", len(categoryDocs), len(productDocs)),
			}, nil
		},
	}
}
