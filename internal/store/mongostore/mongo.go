// Package mongostore implements the notification and verification repositories
// on MongoDB.
package mongostore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nhle/garden-reminders/internal/store"
)

const (
	notificationCollection = "notifications"
	verificationCollection = "verification_codes"
)

// Store holds the MongoDB collections backing the repositories.
type Store struct {
	client        *mongo.Client
	notifications *mongo.Collection
	verifications *mongo.Collection
	logger        zerolog.Logger
}

var (
	_ store.NotificationRepository = (*Store)(nil)
	_ store.VerificationRepository = (*Store)(nil)
)

// Connect dials uri, verifies the connection and prepares the collections
// in database.
func Connect(ctx context.Context, logger zerolog.Logger, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	s, err := New(ctx, logger, client.Database(database))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.client = client
	return s, nil
}

// New creates the repositories on db and ensures their indexes exist.
func New(ctx context.Context, logger zerolog.Logger, db *mongo.Database) (*Store, error) {
	s := &Store{
		notifications: db.Collection(notificationCollection),
		verifications: db.Collection(verificationCollection),
		logger:        logger.With().Str("component", "mongo").Logger(),
	}

	_, err := s.notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "task_id", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("creating notification indexes: %w", err)
	}

	_, err = s.verifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating verification indexes: %w", err)
	}

	s.logger.Debug().Msg("mongo indexes ready")
	return s, nil
}

// Close disconnects the client when the Store owns one.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// mongoTransient reports timeouts and network failures.
func mongoTransient(err error) bool {
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

func classify(op string, err error) error {
	return store.Classify(op, err, mongoTransient)
}
