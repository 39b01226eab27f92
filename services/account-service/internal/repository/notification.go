package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/reunitehq/reunite-api/services/account-service/internal/model"
)

// NotificationRepository defines the interface for notification inserts. The
// verification workflow only emits events; listing lives in another service.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *model.Notification) (*model.Notification, error)
}

const notificationCollection = "notifications"

type notificationMongoRepository struct {
	db *mongo.Database
}

func NewNotificationMongoRepository(db *mongo.Database) NotificationRepository {
	return &notificationMongoRepository{db: db}
}

func (r *notificationMongoRepository) CreateNotification(
	ctx context.Context,
	notification *model.Notification,
) (*model.Notification, error) {
	notification.CreatedAt = time.Now()

	result, err := r.db.Collection(notificationCollection).InsertOne(ctx, notification)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		notification.ID = objectID
	}

	return notification, nil
}
