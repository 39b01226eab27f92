package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/reunitehq/reunite-api/services/account-service/internal/model"
	"github.com/reunitehq/reunite-api/services/account-service/internal/tokenslot"
)

// ProfileRepository defines the interface for profile-related database operations.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *model.Profile) (*model.Profile, error)
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	GetProfileByAuthUserID(ctx context.Context, authUserID string) (*model.Profile, error)

	// GetProfileByEmail matches case-insensitively.
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)

	UpdateProfile(ctx context.Context, id string, params UpdateProfileParams) (*model.Profile, error)

	// SetTokenSlot overwrites the flow's slot wholesale. Last writer wins;
	// any previously issued token for the flow becomes unusable.
	SetTokenSlot(ctx context.Context, id string, flow tokenslot.Flow, slot tokenslot.TokenSlot) error

	// ConsumeTokenSlot clears the flow's slot only if it still holds the
	// supplied token, in a single conditional update. It reports whether
	// this call was the one that consumed the token, so concurrent
	// duplicate submissions resolve to exactly one winner.
	ConsumeTokenSlot(ctx context.Context, id string, flow tokenslot.Flow, token string) (bool, error)

	// RepointAuthUser re-points a profile to a new credential identity.
	RepointAuthUser(ctx context.Context, id string, newAuthUserID string) error
}

// UpdateProfileParams defines the optional parameters for updating a profile.
// Only the fields that are not nil will be updated.
type UpdateProfileParams struct {
	Email             *string
	EmailVerified     *bool
	HasPassword       *bool
	LastEmailChangeAt *time.Time
}

const profileCollection = "profiles"

// caseInsensitive compares strings ignoring case and diacritic-insensitive
// tertiary differences, matching the unique email index.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

type profileMongoRepository struct {
	db *mongo.Database
}

// NewProfileMongoRepository creates a new MongoDB repository for profiles.
func NewProfileMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) ProfileRepository {
	collection := db.Collection(profileCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(caseInsensitive),
		},
		{
			Keys:    bson.D{{Key: "auth_user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create profile indexes")
	}

	return &profileMongoRepository{db: db}
}

func (r *profileMongoRepository) CreateProfile(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	result, err := r.db.Collection(profileCollection).InsertOne(ctx, profile)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		profile.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return profile, nil
}

func (r *profileMongoRepository) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, bson.M{"_id": objectID}, nil)
}

func (r *profileMongoRepository) GetProfileByAuthUserID(ctx context.Context, authUserID string) (*model.Profile, error) {
	return r.findOne(ctx, bson.M{"auth_user_id": authUserID}, nil)
}

func (r *profileMongoRepository) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	return r.findOne(ctx, bson.M{"email": email}, options.FindOne().SetCollation(caseInsensitive))
}

func (r *profileMongoRepository) findOne(
	ctx context.Context,
	filter bson.M,
	opts *options.FindOneOptionsBuilder,
) (*model.Profile, error) {
	var result *mongo.SingleResult
	if opts != nil {
		result = r.db.Collection(profileCollection).FindOne(ctx, filter, opts)
	} else {
		result = r.db.Collection(profileCollection).FindOne(ctx, filter)
	}
	if result.Err() != nil {
		return nil, result.Err()
	}

	var profile model.Profile
	if err := result.Decode(&profile); err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *profileMongoRepository) UpdateProfile(
	ctx context.Context,
	id string,
	params UpdateProfileParams,
) (*model.Profile, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	updateMap := bson.M{}
	if params.Email != nil {
		updateMap["email"] = *params.Email
	}
	if params.EmailVerified != nil {
		updateMap["email_verified"] = *params.EmailVerified
	}
	if params.HasPassword != nil {
		updateMap["has_password"] = *params.HasPassword
	}
	if params.LastEmailChangeAt != nil {
		updateMap["last_email_change_at"] = *params.LastEmailChangeAt
	}

	if len(updateMap) == 0 {
		return nil, errors.New("no profile fields to update")
	}

	updateMap["updated_at"] = time.Now()

	result := r.db.Collection(profileCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var profile model.Profile
	if err := result.Decode(&profile); err != nil {
		return nil, err
	}

	return &profile, nil
}

func slotField(flow tokenslot.Flow) string {
	switch flow {
	case tokenslot.FlowReset:
		return "reset_slot"
	case tokenslot.FlowChange:
		return "change_slot"
	default:
		return "verify_slot"
	}
}

func (r *profileMongoRepository) SetTokenSlot(
	ctx context.Context,
	id string,
	flow tokenslot.Flow,
	slot tokenslot.TokenSlot,
) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.db.Collection(profileCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{
			slotField(flow): slot,
			"updated_at":    time.Now(),
		}},
	)
	return err
}

func (r *profileMongoRepository) ConsumeTokenSlot(
	ctx context.Context,
	id string,
	flow tokenslot.Flow,
	token string,
) (bool, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return false, err
	}

	field := slotField(flow)
	result, err := r.db.Collection(profileCollection).UpdateOne(
		ctx,
		bson.M{
			"_id":            objectID,
			field + ".token": token,
		},
		bson.M{"$set": bson.M{
			field:        tokenslot.TokenSlot{},
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return false, err
	}

	return result.ModifiedCount == 1, nil
}

func (r *profileMongoRepository) RepointAuthUser(ctx context.Context, id string, newAuthUserID string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.db.Collection(profileCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{
			"auth_user_id": newAuthUserID,
			"updated_at":   time.Now(),
		}},
	)
	return err
}
