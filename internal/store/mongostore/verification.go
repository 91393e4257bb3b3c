package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/store"
)

var errUnexpectedID = errors.New("inserted id is not an ObjectID")

// PutVerification stores rec keyed by email, replacing any previous one.
func (s *Store) PutVerification(ctx context.Context, rec model.VerificationRecord) error {
	_, err := s.verifications.ReplaceOne(ctx,
		bson.M{"_id": rec.Email},
		rec,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return classify("storing verification code", err)
	}
	return nil
}

// GetVerification returns the live record for email. Records the TTL
// monitor has not yet removed are still returned; expiry is decided by
// the caller.
func (s *Store) GetVerification(ctx context.Context, email string) (*model.VerificationRecord, error) {
	var rec model.VerificationRecord
	err := s.verifications.FindOne(ctx, bson.M{"_id": email}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.NotFound("getting verification code")
	}
	if err != nil {
		return nil, classify("getting verification code", err)
	}
	return &rec, nil
}

// IncrementAttempts applies $inc and returns the post-update counter.
func (s *Store) IncrementAttempts(ctx context.Context, email string) (int, error) {
	var rec model.VerificationRecord
	err := s.verifications.FindOneAndUpdate(ctx,
		bson.M{"_id": email},
		bson.M{"$inc": bson.M{"attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, store.NotFound("incrementing verification attempts")
	}
	if err != nil {
		return 0, classify("incrementing verification attempts", err)
	}
	return rec.Attempts, nil
}

// DeleteVerification removes the record for email, if any.
func (s *Store) DeleteVerification(ctx context.Context, email string) error {
	if _, err := s.verifications.DeleteOne(ctx, bson.M{"_id": email}); err != nil {
		return classify("deleting verification code", err)
	}
	return nil
}
