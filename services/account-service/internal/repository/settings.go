package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/reunitehq/reunite-api/services/account-service/internal/model"
)

// SettingsRepository defines the interface for settings-related database operations.
type SettingsRepository interface {
	// CreateDefault provisions the default settings record for a profile.
	CreateDefault(ctx context.Context, profileID bson.ObjectID) (*model.Settings, error)
}

const settingsCollection = "settings"

type settingsMongoRepository struct {
	db *mongo.Database
}

func NewSettingsMongoRepository(db *mongo.Database) SettingsRepository {
	return &settingsMongoRepository{db: db}
}

func (r *settingsMongoRepository) CreateDefault(
	ctx context.Context,
	profileID bson.ObjectID,
) (*model.Settings, error) {
	now := time.Now()
	settings := &model.Settings{
		ProfileID: profileID,
		Theme:     model.DefaultTheme,
		Locale:    model.DefaultLocale,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := r.db.Collection(settingsCollection).InsertOne(ctx, settings)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		settings.ID = objectID
	}

	return settings, nil
}
