package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoConfig struct {
	URI            string        `envconfig:"URI" split_words:"true" required:"true"`
	Database       string        `envconfig:"DATABASE" split_words:"true" required:"true"`
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT" split_words:"true" default:"10s"`
}

// MongoStore implements Store on a MongoDB database. Document ids cross the
// Store boundary as hex strings; conversion to and from ObjectID happens
// here so callers never see driver types.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, fmt.Errorf("%w: mongo uri is required", ErrStore)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().ApplyURI(uri).SetConnectTimeout(timeout)
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrStore, err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("%w: ping: %v", ErrStore, err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(strings.TrimSpace(cfg.Database)),
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) InsertOne(ctx context.Context, collection string, doc Doc) (string, error) {
	res, err := s.db.Collection(collection).InsertOne(ctx, toBsonDoc(doc))
	if err != nil {
		return "", fmt.Errorf("%w: insert into %s: %v", ErrStore, collection, err)
	}
	return idToString(res.InsertedID), nil
}

func (s *MongoStore) InsertMany(ctx context.Context, collection string, docs []Doc) ([]string, error) {
	payload := make([]any, 0, len(docs))
	for _, d := range docs {
		payload = append(payload, toBsonDoc(d))
	}
	res, err := s.db.Collection(collection).InsertMany(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: insert many into %s: %v", ErrStore, collection, err)
	}
	ids := make([]string, 0, len(res.InsertedIDs))
	for _, id := range res.InsertedIDs {
		ids = append(ids, idToString(id))
	}
	return ids, nil
}

func (s *MongoStore) Find(ctx context.Context, collection string, query, projection Doc) ([]Doc, error) {
	opts := options.Find()
	if len(projection) > 0 {
		opts.SetProjection(toBsonDoc(projection))
	}
	cursor, err := s.db.Collection(collection).Find(ctx, toBsonQuery(query), opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find in %s: %v", ErrStore, collection, err)
	}
	return drainCursor(ctx, collection, cursor)
}

func (s *MongoStore) FindPaginated(ctx context.Context, collection string, page FindPage) (Page, error) {
	col := s.db.Collection(collection)
	filter := toBsonQuery(page.Query)

	opts := options.Find().SetSkip(page.Offset).SetLimit(page.Limit)
	if len(page.Projection) > 0 {
		opts.SetProjection(toBsonDoc(page.Projection))
	}
	if len(page.Sort) > 0 {
		opts.SetSort(toBsonDoc(page.Sort))
	}

	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return Page{}, fmt.Errorf("%w: find in %s: %v", ErrStore, collection, err)
	}
	items, err := drainCursor(ctx, collection, cursor)
	if err != nil {
		return Page{}, err
	}

	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return Page{}, fmt.Errorf("%w: count in %s: %v", ErrStore, collection, err)
	}

	return Page{Items: items, Total: total}, nil
}

func (s *MongoStore) UpdateMany(ctx context.Context, collection string, query, update Doc) (UpdateResult, error) {
	res, err := s.db.Collection(collection).UpdateMany(ctx, toBsonQuery(query), toBsonDoc(update))
	if err != nil {
		return UpdateResult{}, fmt.Errorf("%w: update in %s: %v", ErrStore, collection, err)
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (s *MongoStore) DeleteMany(ctx context.Context, collection string, query Doc) (DeleteResult, error) {
	res, err := s.db.Collection(collection).DeleteMany(ctx, toBsonQuery(query))
	if err != nil {
		return DeleteResult{}, fmt.Errorf("%w: delete in %s: %v", ErrStore, collection, err)
	}
	return DeleteResult{Deleted: res.DeletedCount}, nil
}

func (s *MongoStore) Aggregate(ctx context.Context, collection string, pipeline []Doc) ([]Doc, error) {
	stages := make(bson.A, 0, len(pipeline))
	for _, stage := range pipeline {
		stages = append(stages, toBsonDoc(stage))
	}
	cursor, err := s.db.Collection(collection).Aggregate(ctx, stages)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate in %s: %v", ErrStore, collection, err)
	}
	return drainCursor(ctx, collection, cursor)
}

func (s *MongoStore) ListCollectionNames(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("%w: list collections: %v", ErrStore, err)
	}
	return names, nil
}

func drainCursor(ctx context.Context, collection string, cursor *mongo.Cursor) ([]Doc, error) {
	defer cursor.Close(ctx)

	var docs []Doc
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: decode from %s: %v", ErrStore, collection, err)
		}
		docs = append(docs, fromBsonValue(map[string]any(raw)).(Doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: cursor on %s: %v", ErrStore, collection, err)
	}
	return docs, nil
}

// toBsonQuery converts a query document, promoting hex-string _id values
// (including $in/$nin lists) to ObjectIDs.
func toBsonQuery(query Doc) bson.M {
	out := bson.M{}
	for k, v := range query {
		switch {
		case k == "_id":
			out[k] = idValueToBson(v)
		case k == "$and" || k == "$or" || k == "$nor":
			if subs, ok := v.([]any); ok {
				converted := make(bson.A, 0, len(subs))
				for _, sub := range subs {
					if m, ok := sub.(map[string]any); ok {
						converted = append(converted, toBsonQuery(m))
					} else {
						converted = append(converted, sub)
					}
				}
				out[k] = converted
				continue
			}
			out[k] = v
		default:
			out[k] = toBsonValue(v)
		}
	}
	return out
}

func idValueToBson(v any) any {
	switch t := v.(type) {
	case string:
		if oid, err := primitive.ObjectIDFromHex(t); err == nil {
			return oid
		}
		return t
	case map[string]any:
		out := bson.M{}
		for op, val := range t {
			if list, ok := val.([]any); ok {
				converted := make(bson.A, 0, len(list))
				for _, e := range list {
					converted = append(converted, idValueToBson(e))
				}
				out[op] = converted
				continue
			}
			out[op] = idValueToBson(val)
		}
		return out
	default:
		return v
	}
}

func toBsonDoc(doc Doc) bson.M {
	out := bson.M{}
	for k, v := range doc {
		out[k] = toBsonValue(v)
	}
	return out
}

func toBsonValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return toBsonDoc(t)
	case []any:
		list := make(bson.A, 0, len(t))
		for _, e := range t {
			list = append(list, toBsonValue(e))
		}
		return list
	default:
		return v
	}
}

func fromBsonValue(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.A:
		list := make([]any, 0, len(t))
		for _, e := range t {
			list = append(list, fromBsonValue(e))
		}
		return list
	case bson.M:
		out := Doc{}
		for k, e := range t {
			out[k] = fromBsonValue(e)
		}
		return out
	case map[string]any:
		out := Doc{}
		for k, e := range t {
			out[k] = fromBsonValue(e)
		}
		return out
	default:
		return v
	}
}

func idToString(id any) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}
