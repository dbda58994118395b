// Package memory persists per-session conversation transcripts in the
// memory collection. Replay order is carried by an explicit ordinal so a
// transcript survives clock skew between appends.
package memory

import (
	"context"
	"sort"
	"time"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

const Collection = "memory"

type Service struct {
	store storex.Store
	now   func() time.Time
}

func NewService(st storex.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Append records one transcript entry. The ordinal is one past the current
// count for the session; concurrent turns for one session are not supported.
func (s *Service) Append(ctx context.Context, sessionID, role, content string) error {
	page, err := s.store.FindPaginated(ctx, Collection, storex.FindPage{
		Query: storex.Doc{"session_id": sessionID},
		Limit: 1,
	})
	if err != nil {
		return err
	}

	_, err = s.store.InsertOne(ctx, Collection, storex.Stamp(storex.Doc{
		"session_id": sessionID,
		"role":       role,
		"content":    content,
		"ordinal":    page.Total + 1,
	}, s.now()))
	return err
}

// List returns the session transcript in append order. An unknown session
// yields an empty transcript.
func (s *Service) List(ctx context.Context, sessionID string) ([]contractx.Message, error) {
	docs, err := s.store.Find(ctx, Collection, storex.Doc{"session_id": sessionID}, nil)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return ordinalOf(docs[i]) < ordinalOf(docs[j])
	})

	messages := make([]contractx.Message, 0, len(docs))
	for _, doc := range docs {
		role, _ := doc["role"].(string)
		content, _ := doc["content"].(string)
		messages = append(messages, contractx.Message{Role: role, Content: content})
	}
	return messages, nil
}

// Clear drops every entry for the session. Clearing an unknown session
// succeeds.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	_, err := s.store.DeleteMany(ctx, Collection, storex.Doc{"session_id": sessionID})
	return err
}

func ordinalOf(doc storex.Doc) int64 {
	switch t := doc["ordinal"].(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}
