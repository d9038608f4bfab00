package datastore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo implements Store on a MongoDB database. Rows keep their own "id"
// field; the driver's _id is left to the server. Tx needs a replica set.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo creates a new Mongo store
func NewMongo(client *mongo.Client, database string) *Mongo {
	return &Mongo{client: client, db: client.Database(database)}
}

// EnsureIndexes creates the unique keys the repositories rely on plus the
// indexes behind the default listings.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		Profiles: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		},
		Posts: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "id", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		Comments: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		Likes: {
			{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: unique},
		},
		Followers: {
			{Keys: bson.D{{Key: "follower_id", Value: 1}, {Key: "following_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "following_id", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func filterDoc(q Query) bson.D {
	conds := bson.A{}
	for _, f := range q.Filters {
		switch f.Op {
		case OpEq:
			conds = append(conds, bson.D{{Key: f.Field, Value: f.Value}})
		case OpLt:
			conds = append(conds, bson.D{{Key: f.Field, Value: bson.D{{Key: "$lt", Value: f.Value}}}})
		case OpGt:
			conds = append(conds, bson.D{{Key: f.Field, Value: bson.D{{Key: "$gt", Value: f.Value}}}})
		case OpIn:
			conds = append(conds, bson.D{{Key: f.Field, Value: bson.D{{Key: "$in", Value: f.Value}}}})
		}
	}
	if k := q.After; k != nil {
		op := "$gt"
		if k.Desc {
			op = "$lt"
		}
		conds = append(conds, bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: k.TimeField, Value: bson.D{{Key: op, Value: k.Time}}}},
			bson.D{
				{Key: k.TimeField, Value: k.Time},
				{Key: k.IDField, Value: bson.D{{Key: op, Value: k.ID}}},
			},
		}}})
	}
	if len(conds) == 0 {
		return bson.D{}
	}
	return bson.D{{Key: "$and", Value: conds}}
}

func (s *Mongo) Select(ctx context.Context, collection string, q Query, dest any) error {
	if err := q.validate(collection); err != nil {
		return err
	}

	findOptions := options.Find()
	if len(q.Order) > 0 {
		sort := bson.D{}
		for _, o := range q.Order {
			dir := 1
			if o.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: o.Field, Value: dir})
		}
		findOptions.SetSort(sort)
	}
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filterDoc(q), findOptions)
	if err != nil {
		return fmt.Errorf("select %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, dest); err != nil {
		return fmt.Errorf("select %s: %w", collection, err)
	}
	return nil
}

func (s *Mongo) Insert(ctx context.Context, collection string, row any) error {
	if err := checkIdent("collection", collection); err != nil {
		return err
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, row); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert %s: %w", collection, ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", collection, err)
	}
	return nil
}

func (s *Mongo) Delete(ctx context.Context, collection string, q Query) (int64, error) {
	if err := q.validate(collection); err != nil {
		return 0, err
	}
	res, err := s.db.Collection(collection).DeleteMany(ctx, filterDoc(q))
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", collection, err)
	}
	return res.DeletedCount, nil
}

func (s *Mongo) Count(ctx context.Context, collection string, q Query) (int64, error) {
	if err := q.validate(collection); err != nil {
		return 0, err
	}
	n, err := s.db.Collection(collection).CountDocuments(ctx, filterDoc(q))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *Mongo) Update(ctx context.Context, collection string, q Query, set map[string]any) (int64, error) {
	if err := q.validate(collection); err != nil {
		return 0, err
	}
	doc := bson.D{}
	for field, v := range set {
		if err := checkIdent("field", field); err != nil {
			return 0, err
		}
		doc = append(doc, bson.E{Key: field, Value: v})
	}
	res, err := s.db.Collection(collection).UpdateMany(ctx, filterDoc(q), bson.D{{Key: "$set", Value: doc}})
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", collection, err)
	}
	return res.MatchedCount, nil
}

func (s *Mongo) Increment(ctx context.Context, collection string, q Query, field string, delta int64) (int64, error) {
	if err := q.validate(collection); err != nil {
		return 0, err
	}
	if err := checkIdent("field", field); err != nil {
		return 0, err
	}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: field, Value: delta}}}}
	res, err := s.db.Collection(collection).UpdateMany(ctx, filterDoc(q), update)
	if err != nil {
		return 0, fmt.Errorf("increment %s.%s: %w", collection, field, err)
	}
	return res.MatchedCount, nil
}

func (s *Mongo) Tx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	})
	return err
}

// Close disconnects the client.
func (s *Mongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
