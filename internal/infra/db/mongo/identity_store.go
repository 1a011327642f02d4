package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campuschat/internal/app/identity"
	"campuschat/internal/domain/chat"
)

// IdentityStore keeps the client identity in a collection keyed by the
// storage key, so several installs can share one database.
type IdentityStore struct {
	col *mongo.Collection
}

func NewIdentityStore(db *mongo.Database) *IdentityStore {
	return &IdentityStore{col: db.Collection("client_identity")}
}

func (s *IdentityStore) Load(ctx context.Context, key string) (chat.ID, bool, error) {
	var doc identityDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, err
	}
	return chat.ID(doc.Value), true, nil
}

func (s *IdentityStore) Save(ctx context.Context, key string, id chat.ID) error {
	update := bson.M{"$set": bson.M{
		"value":      id.String(),
		"updated_at": time.Now().UTC(),
	}}
	_, err := s.col.UpdateByID(ctx, key, update, options.Update().SetUpsert(true))
	return err
}

type identityDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

var _ identity.Store = (*IdentityStore)(nil)
