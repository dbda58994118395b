package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements Store entirely in process. It honors the same query
// operator subset the rest of the system relies on and is the backing store
// for the test suites.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Doc
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]Doc)}
}

func (s *MemoryStore) InsertOne(ctx context.Context, collection string, doc Doc) (string, error) {
	ids, err := s.InsertMany(ctx, collection, []Doc{doc})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (s *MemoryStore) InsertMany(_ context.Context, collection string, docs []Doc) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		stored := CloneDoc(doc)
		id, _ := stored["_id"].(string)
		if id == "" {
			id = uuid.NewString()
			stored["_id"] = id
		}
		s.collections[collection] = append(s.collections[collection], stored)
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) Find(_ context.Context, collection string, query, projection Doc) ([]Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Doc
	for _, doc := range s.collections[collection] {
		ok, err := matchDoc(doc, query)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, project(CloneDoc(doc), projection))
		}
	}
	return out, nil
}

func (s *MemoryStore) FindPaginated(ctx context.Context, collection string, page FindPage) (Page, error) {
	matched, err := s.Find(ctx, collection, page.Query, nil)
	if err != nil {
		return Page{}, err
	}
	total := int64(len(matched))

	if len(page.Sort) > 0 {
		sortDocs(matched, page.Sort)
	}

	offset := page.Offset
	if offset > total {
		offset = total
	}
	end := total
	if page.Limit > 0 && offset+page.Limit < end {
		end = offset + page.Limit
	}

	items := make([]Doc, 0, end-offset)
	for _, doc := range matched[offset:end] {
		items = append(items, project(doc, page.Projection))
	}
	return Page{Items: items, Total: total}, nil
}

func (s *MemoryStore) UpdateMany(_ context.Context, collection string, query, update Doc) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := update["$set"].(map[string]any)
	if !ok {
		// Bare field maps update directly, mirroring the wrap-in-$set
		// convention of Touch.
		set = update
	}

	var res UpdateResult
	for _, doc := range s.collections[collection] {
		matched, err := matchDoc(doc, query)
		if err != nil {
			return UpdateResult{}, err
		}
		if !matched {
			continue
		}
		res.Matched++
		changed := false
		for k, v := range set {
			if !equalValues(doc[k], v) {
				doc[k] = cloneValue(v)
				changed = true
			}
		}
		if changed {
			res.Modified++
		}
	}
	return res, nil
}

func (s *MemoryStore) DeleteMany(_ context.Context, collection string, query Doc) (DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.collections[collection][:0]
	var deleted int64
	for _, doc := range s.collections[collection] {
		matched, err := matchDoc(doc, query)
		if err != nil {
			return DeleteResult{}, err
		}
		if matched {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	s.collections[collection] = kept
	return DeleteResult{Deleted: deleted}, nil
}

func (s *MemoryStore) ListCollectionNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Aggregate(ctx context.Context, collection string, pipeline []Doc) ([]Doc, error) {
	s.mu.RLock()
	docs := make([]Doc, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		docs = append(docs, CloneDoc(doc))
	}
	s.mu.RUnlock()

	var err error
	for _, stage := range pipeline {
		docs, err = applyStage(docs, stage)
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func applyStage(docs []Doc, stage Doc) ([]Doc, error) {
	for op, spec := range stage {
		switch op {
		case "$match":
			query, ok := spec.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: $match expects a document", ErrStore)
			}
			var out []Doc
			for _, doc := range docs {
				matched, err := matchDoc(doc, query)
				if err != nil {
					return nil, err
				}
				if matched {
					out = append(out, doc)
				}
			}
			return out, nil
		case "$group":
			groupSpec, ok := spec.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: $group expects a document", ErrStore)
			}
			return groupDocs(docs, groupSpec)
		case "$sort":
			sortSpec, ok := spec.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: $sort expects a document", ErrStore)
			}
			sortDocs(docs, sortSpec)
			return docs, nil
		case "$limit":
			n := toInt64(spec)
			if n < int64(len(docs)) {
				return docs[:n], nil
			}
			return docs, nil
		case "$project":
			projSpec, ok := spec.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: $project expects a document", ErrStore)
			}
			out := make([]Doc, 0, len(docs))
			for _, doc := range docs {
				out = append(out, project(doc, projSpec))
			}
			return out, nil
		default:
			return nil, fmt.Errorf("%w: unsupported pipeline stage %s", ErrStore, op)
		}
	}
	return docs, nil
}

func groupDocs(docs []Doc, spec Doc) ([]Doc, error) {
	keyExpr := spec["_id"]

	type bucket struct {
		key  any
		sums map[string]float64
	}
	order := []string{}
	buckets := map[string]*bucket{}

	for _, doc := range docs {
		key := resolveExpr(keyExpr, doc)
		keyStr := fmt.Sprint(key)
		b, ok := buckets[keyStr]
		if !ok {
			b = &bucket{key: key, sums: map[string]float64{}}
			buckets[keyStr] = b
			order = append(order, keyStr)
		}

		for field, accRaw := range spec {
			if field == "_id" {
				continue
			}
			acc, ok := accRaw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: $group accumulator for %s must be a document", ErrStore, field)
			}
			for op, arg := range acc {
				switch op {
				case "$sum":
					if num, ok := toFloat(resolveExpr(arg, doc)); ok {
						b.sums[field] += num
					}
				case "$count":
					b.sums[field]++
				default:
					return nil, fmt.Errorf("%w: unsupported accumulator %s", ErrStore, op)
				}
			}
		}
	}

	out := make([]Doc, 0, len(order))
	for _, keyStr := range order {
		b := buckets[keyStr]
		doc := Doc{"_id": b.key}
		for field, total := range b.sums {
			doc[field] = total
		}
		out = append(out, doc)
	}
	return out, nil
}

// resolveExpr evaluates "$field" references against a document; anything
// else is a literal.
func resolveExpr(expr any, doc Doc) any {
	if ref, ok := expr.(string); ok && len(ref) > 1 && ref[0] == '$' {
		return doc[ref[1:]]
	}
	return expr
}

func toInt64(v any) int64 {
	if f, ok := toFloat(v); ok {
		return int64(f)
	}
	return 0
}
