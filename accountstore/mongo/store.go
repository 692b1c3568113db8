// Package mongo stores goPhoneAuth accounts as MongoDB documents with an
// embedded phones array.
//
// MongoDB cannot express "number unique among verified entries" across array
// elements, so this adapter relies on the engine's post-insert re-check for
// duplicate detection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	goPhoneAuth "github.com/MrEthical07/goPhoneAuth"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection is used when New receives an empty collection name.
const DefaultCollection = "users"

type phoneDocument struct {
	Number   string `bson:"number"`
	Verified bool   `bson:"verified"`
}

type accountDocument struct {
	ID        string          `bson:"_id"`
	Username  string          `bson:"username"`
	Phones    []phoneDocument `bson:"phones"`
	CreatedAt time.Time       `bson:"createdAt"`
}

// Store implements goPhoneAuth.AccountStore on a MongoDB collection.
type Store struct {
	coll *mongo.Collection
}

// New returns a store backed by db.collection.
func New(db *mongo.Database, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{coll: db.Collection(collection)}
}

// EnsureIndexes creates the index FindByPhone depends on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "phones.number", Value: 1}},
		Options: options.Index().SetName("phones_number"),
	})
	if err != nil {
		return fmt.Errorf("mongo: create phones.number index: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, userID string) (*goPhoneAuth.Account, error) {
	var doc accountDocument
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, goPhoneAuth.ErrUserNotFound
		}
		return nil, err
	}
	account := doc.account()
	return &account, nil
}

func (s *Store) FindByPhone(ctx context.Context, number string, verifiedOnly bool) ([]goPhoneAuth.Account, error) {
	filter := bson.D{{Key: "phones.number", Value: number}}
	if verifiedOnly {
		filter = bson.D{{Key: "phones", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "number", Value: number},
			{Key: "verified", Value: true},
		}}}}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []accountDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]goPhoneAuth.Account, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.account())
	}
	return out, nil
}

func (s *Store) InsertAccount(ctx context.Context, account goPhoneAuth.Account) (string, error) {
	doc := documentFrom(account)
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (s *Store) DeleteAccount(ctx context.Context, userID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: userID}})
	return err
}

// SetPhoneVerified rewrites the phones array in one pipeline update so that a
// verified entry and its former unverified twin collapse into one element.
func (s *Store) SetPhoneVerified(ctx context.Context, userID, number string) error {
	promote := bson.D{{Key: "$map", Value: bson.D{
		{Key: "input", Value: "$phones"},
		{Key: "as", Value: "p"},
		{Key: "in", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{"$$p.number", number}}},
			bson.D{{Key: "number", Value: "$$p.number"}, {Key: "verified", Value: true}},
			"$$p",
		}}}},
	}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "phones", Value: bson.D{{Key: "$setUnion", Value: bson.A{promote}}}}}}},
	}

	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: userID}}, pipeline)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return goPhoneAuth.ErrUserNotFound
	}
	return nil
}

func (s *Store) AddPhone(ctx context.Context, userID string, entry goPhoneAuth.PhoneEntry) error {
	update := bson.D{{Key: "$addToSet", Value: bson.D{{Key: "phones", Value: phoneDocument(entry)}}}}
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: userID}}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return goPhoneAuth.ErrUserNotFound
	}
	return nil
}

func (s *Store) RemovePhone(ctx context.Context, userID, number string) error {
	update := bson.D{{Key: "$pull", Value: bson.D{{Key: "phones", Value: bson.D{{Key: "number", Value: number}}}}}}
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: userID}}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return goPhoneAuth.ErrUserNotFound
	}
	return nil
}

func documentFrom(a goPhoneAuth.Account) accountDocument {
	doc := accountDocument{
		ID:        a.ID,
		Username:  a.Username,
		Phones:    make([]phoneDocument, 0, len(a.Phones)),
		CreatedAt: a.CreatedAt.UTC(),
	}
	seen := make(map[phoneDocument]struct{}, len(a.Phones))
	for _, p := range a.Phones {
		pd := phoneDocument(p)
		if _, ok := seen[pd]; ok {
			continue
		}
		seen[pd] = struct{}{}
		doc.Phones = append(doc.Phones, pd)
	}
	return doc
}

func (d accountDocument) account() goPhoneAuth.Account {
	a := goPhoneAuth.Account{
		ID:        d.ID,
		Username:  d.Username,
		Phones:    make([]goPhoneAuth.PhoneEntry, 0, len(d.Phones)),
		CreatedAt: d.CreatedAt,
	}
	for _, p := range d.Phones {
		a.Phones = append(a.Phones, goPhoneAuth.PhoneEntry(p))
	}
	return a
}
