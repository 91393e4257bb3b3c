package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/store"
)

// notificationDocument is the stored shape of a model.Notification.
type notificationDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    string        `bson:"user_id"`
	TaskID    *string       `bson:"task_id"`
	Type      string        `bson:"type"`
	Title     string        `bson:"title"`
	Message   string        `bson:"message"`
	Garden    string        `bson:"garden,omitempty"`
	Plant     string        `bson:"plant,omitempty"`
	Priority  string        `bson:"priority"`
	Timestamp time.Time     `bson:"timestamp"`
	CreatedAt time.Time     `bson:"created_at"`
	Read      bool          `bson:"read"`
	ReadAt    *time.Time    `bson:"read_at,omitempty"`
}

func toNotificationDocument(n model.Notification) notificationDocument {
	return notificationDocument{
		UserID:    n.UserID,
		TaskID:    n.TaskID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Garden:    n.Garden,
		Plant:     n.Plant,
		Priority:  string(n.Priority),
		Timestamp: n.Timestamp,
		CreatedAt: n.CreatedAt,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
	}
}

func (d notificationDocument) model() model.Notification {
	return model.Notification{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		TaskID:    d.TaskID,
		Type:      model.TaskType(d.Type),
		Title:     d.Title,
		Message:   d.Message,
		Garden:    d.Garden,
		Plant:     d.Plant,
		Priority:  model.Priority(d.Priority),
		Timestamp: d.Timestamp,
		CreatedAt: d.CreatedAt,
		Read:      d.Read,
		ReadAt:    d.ReadAt,
	}
}

// patchUpdate converts a partial update into a $set document. It returns
// nil when the patch changes nothing.
func patchUpdate(patch store.NotificationPatch) bson.M {
	set := bson.M{}
	if patch.Read != nil {
		set["read"] = *patch.Read
	}
	if patch.ReadAt != nil {
		set["read_at"] = *patch.ReadAt
	}
	if len(set) == 0 {
		return nil
	}
	return bson.M{"$set": set}
}

// InsertNotification stores n and returns the generated ObjectID as hex.
func (s *Store) InsertNotification(ctx context.Context, n model.Notification) (string, error) {
	result, err := s.notifications.InsertOne(ctx, toNotificationDocument(n))
	if err != nil {
		return "", classify("creating notification", err)
	}

	objectID, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return "", &store.Error{
			Op:   "creating notification",
			Kind: store.KindPermanent,
			Err:  errUnexpectedID,
		}
	}
	return objectID.Hex(), nil
}

// QueryNotifications returns a user's notifications ordered by timestamp
// descending.
func (s *Store) QueryNotifications(
	ctx context.Context,
	q store.NotificationQuery,
) ([]model.Notification, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.notifications.Find(ctx, bson.M{"user_id": q.UserID}, opts)
	if err != nil {
		return nil, classify("querying notifications", err)
	}
	defer cursor.Close(ctx)

	var docs []notificationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify("decoding notifications", err)
	}

	notifications := make([]model.Notification, 0, len(docs))
	for _, d := range docs {
		notifications = append(notifications, d.model())
	}
	return notifications, nil
}

// UpdateNotification applies patch to the notification with the given id.
func (s *Store) UpdateNotification(
	ctx context.Context,
	id string,
	patch store.NotificationPatch,
) error {
	update := patchUpdate(patch)
	if update == nil {
		return nil
	}

	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return store.NotFound("updating notification " + id)
	}

	result, err := s.notifications.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return classify("updating notification "+id, err)
	}
	if result.MatchedCount == 0 {
		return store.NotFound("updating notification " + id)
	}
	return nil
}

// DeleteNotification removes a notification by id.
func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return store.NotFound("deleting notification " + id)
	}

	result, err := s.notifications.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return classify("deleting notification "+id, err)
	}
	if result.DeletedCount == 0 {
		return store.NotFound("deleting notification " + id)
	}
	return nil
}
