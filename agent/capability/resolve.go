package capability

import (
	"context"
	"strings"

	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

// resolution is the result of turning a name-or-id reference into a
// document id. Created is true when the referenced entity had to be
// inserted first; callers report that, never hide it.
type resolution struct {
	ID      string
	Name    string
	Created bool
	Found   bool
}

// resolveCategory resolves a category reference. An explicit id is trusted
// without lookup. A name is matched against the categories collection;
// when absent and createMissing is set, the category is created first.
func resolveCategory(ctx context.Context, deps Deps, id, name string, createMissing bool) (resolution, error) {
	return resolveByName(ctx, deps, collectionCategories, id, name, createMissing, func(n string) storex.Doc {
		return storex.Doc{"name": n}
	})
}

// resolveUser resolves a user reference for order operations. A user
// created along the way gets the default role and no credentials; it is
// reported so the operator can complete the profile.
func resolveUser(ctx context.Context, deps Deps, id, name string, createMissing bool) (resolution, error) {
	return resolveByName(ctx, deps, collectionUsers, id, name, createMissing, func(n string) storex.Doc {
		return storex.Doc{"name": n, "role": "user"}
	})
}

// resolveProduct resolves a product reference. Products are never created
// implicitly; a miss is reported back to the caller.
func resolveProduct(ctx context.Context, deps Deps, id, name string) (resolution, error) {
	return resolveByName(ctx, deps, collectionProducts, id, name, false, nil)
}

func resolveByName(
	ctx context.Context,
	deps Deps,
	collection string,
	id, name string,
	createMissing bool,
	newDoc func(name string) storex.Doc,
) (resolution, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)

	if id != "" {
		return resolution{ID: id, Found: true}, nil
	}
	if name == "" {
		return resolution{}, nil
	}

	docs, err := deps.Store.Find(ctx, collection, storex.Doc{"name": name}, nil)
	if err != nil {
		return resolution{}, err
	}
	if len(docs) > 0 {
		resolved, _ := docs[0]["_id"].(string)
		return resolution{ID: resolved, Name: name, Found: true}, nil
	}

	if !createMissing || newDoc == nil {
		return resolution{Name: name}, nil
	}

	created, err := deps.Store.InsertOne(ctx, collection, storex.Stamp(newDoc(name), deps.Now()))
	if err != nil {
		return resolution{}, err
	}
	return resolution{ID: created, Name: name, Created: true, Found: true}, nil
}
