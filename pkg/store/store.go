// Package store provides a uniform keyed-collection contract over a document
// database, with a MongoDB driver for production and an in-process driver for
// tests and local development. Documents are schemaless maps; there is no
// cross-call transaction guarantee.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrStore = errors.New("store operation failed")

// Doc is a single schemaless document.
type Doc = map[string]any

// FindPage describes a paginated find.
type FindPage struct {
	Query      Doc
	Projection Doc
	Sort       Doc
	Offset     int64
	Limit      int64
}

// Page is the result of a paginated find. Total comes from an independent
// count of the query, not from the returned slice.
type Page struct {
	Items []Doc
	Total int64
}

type UpdateResult struct {
	Matched  int64
	Modified int64
}

type DeleteResult struct {
	Deleted int64
}

// Store is the entity store adapter consumed by every component above it.
type Store interface {
	InsertOne(ctx context.Context, collection string, doc Doc) (string, error)
	InsertMany(ctx context.Context, collection string, docs []Doc) ([]string, error)
	Find(ctx context.Context, collection string, query, projection Doc) ([]Doc, error)
	FindPaginated(ctx context.Context, collection string, page FindPage) (Page, error)
	UpdateMany(ctx context.Context, collection string, query, update Doc) (UpdateResult, error)
	DeleteMany(ctx context.Context, collection string, query Doc) (DeleteResult, error)
	Aggregate(ctx context.Context, collection string, pipeline []Doc) ([]Doc, error)
	ListCollectionNames(ctx context.Context) ([]string, error)
}

// Stamp sets createdAt/updatedAt on a new document.
func Stamp(doc Doc, now time.Time) Doc {
	doc["createdAt"] = now.UTC()
	doc["updatedAt"] = now.UTC()
	return doc
}

// Touch refreshes updatedAt inside a $set patch, wrapping a bare field map
// into {$set: ...} when the caller did not.
func Touch(update Doc, now time.Time) Doc {
	fields := Doc{}
	if set, ok := update["$set"].(map[string]any); ok {
		for k, v := range set {
			fields[k] = v
		}
	} else {
		for k, v := range update {
			fields[k] = v
		}
	}
	fields["updatedAt"] = now.UTC()
	return Doc{"$set": fields}
}

// CloneDoc deep-copies a document so drivers and callers never share state.
func CloneDoc(doc Doc) Doc {
	if doc == nil {
		return nil
	}
	out := make(Doc, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneDoc(t)
	case []any:
		list := make([]any, len(t))
		for i, e := range t {
			list[i] = cloneValue(e)
		}
		return list
	default:
		return v
	}
}
