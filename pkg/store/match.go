package store

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// matchDoc reports whether doc satisfies query, honoring the operator subset
// documented on MemoryStore.
func matchDoc(doc Doc, query Doc) (bool, error) {
	for key, cond := range query {
		switch key {
		case "$and":
			subs, ok := cond.([]any)
			if !ok {
				return false, fmt.Errorf("%w: $and expects a list", ErrStore)
			}
			for _, sub := range subs {
				subQuery, ok := sub.(map[string]any)
				if !ok {
					return false, fmt.Errorf("%w: $and entries must be documents", ErrStore)
				}
				matched, err := matchDoc(doc, subQuery)
				if err != nil || !matched {
					return false, err
				}
			}
		case "$or":
			subs, ok := cond.([]any)
			if !ok {
				return false, fmt.Errorf("%w: $or expects a list", ErrStore)
			}
			anyMatched := false
			for _, sub := range subs {
				subQuery, ok := sub.(map[string]any)
				if !ok {
					return false, fmt.Errorf("%w: $or entries must be documents", ErrStore)
				}
				matched, err := matchDoc(doc, subQuery)
				if err != nil {
					return false, err
				}
				if matched {
					anyMatched = true
					break
				}
			}
			if !anyMatched {
				return false, nil
			}
		default:
			matched, err := matchField(doc, key, cond)
			if err != nil || !matched {
				return false, err
			}
		}
	}
	return true, nil
}

func matchField(doc Doc, field string, cond any) (bool, error) {
	value, present := doc[field]

	ops, isOps := cond.(map[string]any)
	if !isOps || !hasOperator(ops) {
		return equalOrContains(value, cond), nil
	}

	for op, arg := range ops {
		switch op {
		case "$eq":
			if !equalOrContains(value, arg) {
				return false, nil
			}
		case "$ne":
			if equalOrContains(value, arg) {
				return false, nil
			}
		case "$gt", "$gte", "$lt", "$lte":
			ok, err := compareOp(value, arg, op)
			if err != nil || !ok {
				return false, err
			}
		case "$in":
			list, ok := arg.([]any)
			if !ok {
				return false, fmt.Errorf("%w: $in expects a list", ErrStore)
			}
			found := false
			for _, candidate := range list {
				if equalOrContains(value, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		case "$nin":
			list, ok := arg.([]any)
			if !ok {
				return false, fmt.Errorf("%w: $nin expects a list", ErrStore)
			}
			for _, candidate := range list {
				if equalOrContains(value, candidate) {
					return false, nil
				}
			}
		case "$exists":
			want, _ := arg.(bool)
			if present != want {
				return false, nil
			}
		case "$regex":
			pattern, ok := arg.(string)
			if !ok {
				return false, fmt.Errorf("%w: $regex expects a string", ErrStore)
			}
			if opts, ok := ops["$options"].(string); ok && strings.Contains(opts, "i") {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return false, fmt.Errorf("%w: invalid $regex: %v", ErrStore, err)
			}
			str, ok := value.(string)
			if !ok || !re.MatchString(str) {
				return false, nil
			}
		case "$options":
			// consumed alongside $regex
		default:
			return false, fmt.Errorf("%w: unsupported operator %s", ErrStore, op)
		}
	}
	return true, nil
}

func hasOperator(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// equalOrContains follows Mongo's implicit array semantics: a scalar query
// value matches an array field when any element equals it.
func equalOrContains(value, want any) bool {
	if list, ok := value.([]any); ok {
		if _, wantList := want.([]any); !wantList {
			for _, e := range list {
				if equalValues(e, want) {
					return true
				}
			}
			return false
		}
	}
	return equalValues(value, want)
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
		return false
	}
	if la, ok := a.([]any); ok {
		lb, ok := b.([]any)
		if !ok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !equalValues(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	if ma, ok := a.(map[string]any); ok {
		mb, ok := b.(map[string]any)
		if !ok || len(ma) != len(mb) {
			return false
		}
		for k, v := range ma {
			if !equalValues(v, mb[k]) {
				return false
			}
		}
		return true
	}
	return a == b
}

func compareOp(value, arg any, op string) (bool, error) {
	cmp, ok := compareValues(value, arg)
	if !ok {
		return false, nil
	}
	switch op {
	case "$gt":
		return cmp > 0, nil
	case "$gte":
		return cmp >= 0, nil
	case "$lt":
		return cmp < 0, nil
	case "$lte":
		return cmp <= 0, nil
	}
	return false, fmt.Errorf("%w: unknown comparison %s", ErrStore, op)
}

// compareValues returns -1/0/1 and whether the two values are comparable.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case ta.Before(tb):
			return -1, true
		case ta.After(tb):
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// project applies a Mongo-style projection: any included field (value 1 or
// true, _id aside) switches to inclusion mode; otherwise listed fields are
// excluded.
func project(doc Doc, projection Doc) Doc {
	if len(projection) == 0 {
		return doc
	}

	inclusion := false
	for field, v := range projection {
		if field == "_id" {
			continue
		}
		if included(v) {
			inclusion = true
			break
		}
	}

	out := Doc{}
	if inclusion {
		for field, v := range projection {
			if !included(v) {
				continue
			}
			if value, ok := doc[field]; ok {
				out[field] = value
			}
		}
		if idSpec, ok := projection["_id"]; !ok || included(idSpec) {
			if id, ok := doc["_id"]; ok {
				out["_id"] = id
			}
		}
		return out
	}

	for k, v := range doc {
		out[k] = v
	}
	for field, v := range projection {
		if !included(v) {
			delete(out, field)
		}
	}
	return out
}

func included(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return false
}

// sortDocs sorts in place by the first field of the spec; multi-key sorts are
// not needed by any caller.
func sortDocs(docs []Doc, spec Doc) {
	for field, dirRaw := range spec {
		dir := int64(1)
		if f, ok := toFloat(dirRaw); ok && f < 0 {
			dir = -1
		}
		sort.SliceStable(docs, func(i, j int) bool {
			cmp, ok := compareValues(docs[i][field], docs[j][field])
			if !ok {
				return false
			}
			if dir < 0 {
				return cmp > 0
			}
			return cmp < 0
		})
		return
	}
}
