package credential

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/reunitehq/reunite-api/shared/auth"
	"github.com/reunitehq/reunite-api/shared/security"
)

const (
	userCollection     = "credential_users"
	identityCollection = "credential_identities"
)

// user is a credential-store user document. An empty PasswordHash means the
// user is OAuth-only.
type user struct {
	ID             bson.ObjectID `bson:"_id,omitempty"`
	Email          string        `bson:"email"`
	PasswordHash   string        `bson:"password_hash,omitempty"`
	EmailConfirmed bool          `bson:"email_confirmed"`
	CreatedAt      time.Time     `bson:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at"`
}

// identity maps an external OAuth subject to a credential user.
type identity struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	UserID      string        `bson:"user_id"`
	Provider    string        `bson:"provider"`
	ProviderID  string        `bson:"provider_id"`
	Email       string        `bson:"email"`
	LastLoginAt time.Time     `bson:"last_login_at"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

type mongoService struct {
	db                *mongo.Database
	jwtAuth           auth.JWTAuthenticator
	accessTokenSecret string
}

// NewMongoService creates the mongo-backed credential service. Session access
// tokens are introspected with the given authenticator and secret.
func NewMongoService(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
	jwtAuth auth.JWTAuthenticator,
	accessTokenSecret string,
) Service {
	// Email uniqueness is an application invariant enforced on profiles.
	// OAuth sign-ins attach to the existing user on the same email when the
	// provider verified it, so at most one password-bearing user holds an
	// email; unverified provider emails may still coexist with it.
	userIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
	}
	if _, err := db.Collection(userCollection).Indexes().CreateMany(ctx, userIndexes); err != nil {
		logger.Fatal().Err(err).Msg("failed to create credential user indexes")
	}

	identityIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "provider", Value: 1},
				{Key: "provider_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := db.Collection(identityCollection).Indexes().CreateMany(ctx, identityIndexes); err != nil {
		logger.Fatal().Err(err).Msg("failed to create credential identity indexes")
	}

	return &mongoService{
		db:                db,
		jwtAuth:           jwtAuth,
		accessTokenSecret: accessTokenSecret,
	}
}

func (s *mongoService) CreateUser(ctx context.Context, email, password string) (string, error) {
	passwordHash := ""
	if password != "" {
		hash, err := security.HashPassword(password)
		if err != nil {
			return "", err
		}
		passwordHash = hash

		// Only one password credential may exist per email.
		err = s.db.Collection(userCollection).
			FindOne(ctx, passwordUserFilter(email)).Err()
		if err == nil {
			return "", ErrUserExists
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return "", err
		}
	}

	now := time.Now()
	result, err := s.db.Collection(userCollection).InsertOne(ctx, &user{
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return "", err
	}

	objectID, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return "", errors.New("failed to convert inserted ID to ObjectID")
	}

	return objectID.Hex(), nil
}

// passwordUserFilter matches the password-bearing credential user on an
// email, skipping any OAuth-only users sharing it.
func passwordUserFilter(email string) bson.M {
	return bson.M{
		"email":         email,
		"password_hash": bson.M{"$nin": bson.A{"", nil}},
	}
}

func (s *mongoService) SignIn(ctx context.Context, email, password string) (string, error) {
	var u user
	err := s.db.Collection(userCollection).FindOne(ctx, passwordUserFilter(email)).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if ok, err := security.VerifyPassword(password, u.PasswordHash); err != nil {
		return "", err
	} else if !ok {
		return "", ErrInvalidCredentials
	}

	return u.ID.Hex(), nil
}

func (s *mongoService) UpdateCredential(ctx context.Context, id string, params UpdateCredentialParams) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	updateMap := bson.M{}
	if params.Password != nil {
		hash, err := security.HashPassword(*params.Password)
		if err != nil {
			return err
		}
		updateMap["password_hash"] = hash
	}
	if params.Email != nil {
		updateMap["email"] = *params.Email
	}
	if params.EmailConfirmed != nil {
		updateMap["email_confirmed"] = *params.EmailConfirmed
	}

	if len(updateMap) == 0 {
		return errors.New("no credential fields to update")
	}

	updateMap["updated_at"] = time.Now()

	result, err := s.db.Collection(userCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": updateMap},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (s *mongoService) GetUserByToken(ctx context.Context, accessToken string) (*Identity, error) {
	claims := jwt.MapClaims{}
	if _, err := s.jwtAuth.ValidateTokenWithClaims(accessToken, s.accessTokenSecret, claims); err != nil {
		return nil, ErrInvalidAccessToken
	}

	userID, ok := claimsUserID(claims)
	if !ok {
		return nil, ErrInvalidAccessToken
	}

	objectID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}

	var u user
	err = s.db.Collection(userCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &Identity{UserID: u.ID.Hex(), Email: u.Email}, nil
}

func (s *mongoService) GetOrCreateOAuthUser(ctx context.Context, provider, subject, email string, emailVerified bool) (string, error) {
	var ident identity
	err := s.db.Collection(identityCollection).FindOne(ctx, bson.M{
		"provider":    provider,
		"provider_id": subject,
	}).Decode(&ident)
	if err == nil {
		_, err = s.db.Collection(identityCollection).UpdateOne(
			ctx,
			bson.M{"_id": ident.ID},
			bson.M{"$set": bson.M{"last_login_at": time.Now()}},
		)
		return ident.UserID, err
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return "", err
	}

	// First sign-in for this subject: attach to the credential user already
	// holding this email, so later password operations land on the same user
	// that signs in. Only a provider-verified email may claim an existing
	// user; an unverified one gets a fresh passwordless user instead.
	userID := ""
	if emailVerified {
		// The password-bearing user wins when several users share the email.
		for _, filter := range []bson.M{passwordUserFilter(email), {"email": email}} {
			var existing user
			err = s.db.Collection(userCollection).FindOne(ctx, filter).Decode(&existing)
			if err == nil {
				userID = existing.ID.Hex()
				break
			}
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return "", err
			}
		}
	}
	if userID == "" {
		userID, err = s.CreateUser(ctx, email, "")
		if err != nil {
			return "", err
		}
	}

	now := time.Now()
	_, err = s.db.Collection(identityCollection).InsertOne(ctx, &identity{
		UserID:      userID,
		Provider:    provider,
		ProviderID:  subject,
		Email:       email,
		LastLoginAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return "", err
	}

	return userID, nil
}
