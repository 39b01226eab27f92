package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/reunitehq/reunite-api/services/account-service/internal/config"
	"github.com/reunitehq/reunite-api/services/account-service/internal/credential"
	"github.com/reunitehq/reunite-api/services/account-service/internal/model"
	"github.com/reunitehq/reunite-api/services/account-service/internal/repository"
	"github.com/reunitehq/reunite-api/services/account-service/internal/tokenslot"
	"github.com/reunitehq/reunite-api/shared/security"
)

// fakeProfileRepo is an in-memory ProfileRepository with the same update
// semantics as the mongo implementation, including conditional consumption.
type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (f *fakeProfileRepo) CreateProfile(_ context.Context, profile *model.Profile) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.profiles {
		if strings.EqualFold(p.Email, profile.Email) {
			return nil, mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
		}
	}

	profile.ID = bson.NewObjectID()
	profile.CreatedAt = time.Now()
	profile.UpdatedAt = profile.CreatedAt
	clone := *profile
	f.profiles[profile.ID.Hex()] = &clone
	return profile, nil
}

func (f *fakeProfileRepo) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.profiles[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	clone := *p
	return &clone, nil
}

func (f *fakeProfileRepo) GetProfileByAuthUserID(_ context.Context, authUserID string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.profiles {
		if p.AuthUserID == authUserID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeProfileRepo) GetProfileByEmail(_ context.Context, email string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.profiles {
		if strings.EqualFold(p.Email, email) {
			clone := *p
			return &clone, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeProfileRepo) UpdateProfile(
	_ context.Context,
	id string,
	params repository.UpdateProfileParams,
) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.profiles[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	if params.Email != nil {
		p.Email = *params.Email
	}
	if params.EmailVerified != nil {
		p.EmailVerified = *params.EmailVerified
	}
	if params.HasPassword != nil {
		p.HasPassword = *params.HasPassword
	}
	if params.LastEmailChangeAt != nil {
		p.LastEmailChangeAt = *params.LastEmailChangeAt
	}
	p.UpdatedAt = time.Now()

	clone := *p
	return &clone, nil
}

func (f *fakeProfileRepo) SetTokenSlot(
	_ context.Context,
	id string,
	flow tokenslot.Flow,
	slot tokenslot.TokenSlot,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.profiles[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	f.setSlot(p, flow, slot)
	return nil
}

func (f *fakeProfileRepo) ConsumeTokenSlot(
	_ context.Context,
	id string,
	flow tokenslot.Flow,
	token string,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.profiles[id]
	if !ok {
		return false, nil
	}
	if f.getSlot(p, flow).Token != token {
		return false, nil
	}
	f.setSlot(p, flow, tokenslot.TokenSlot{})
	return true, nil
}

func (f *fakeProfileRepo) RepointAuthUser(_ context.Context, id string, newAuthUserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.profiles[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	p.AuthUserID = newAuthUserID
	return nil
}

func (f *fakeProfileRepo) getSlot(p *model.Profile, flow tokenslot.Flow) tokenslot.TokenSlot {
	switch flow {
	case tokenslot.FlowReset:
		return p.ResetSlot
	case tokenslot.FlowChange:
		return p.ChangeSlot
	default:
		return p.VerifySlot
	}
}

func (f *fakeProfileRepo) setSlot(p *model.Profile, flow tokenslot.Flow, slot tokenslot.TokenSlot) {
	switch flow {
	case tokenslot.FlowReset:
		p.ResetSlot = slot
	case tokenslot.FlowChange:
		p.ChangeSlot = slot
	default:
		p.VerifySlot = slot
	}
}

// add seeds a profile and returns its id.
func (f *fakeProfileRepo) add(p model.Profile) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p.ID.IsZero() {
		p.ID = bson.NewObjectID()
	}
	f.profiles[p.ID.Hex()] = &p
	return p.ID.Hex()
}

// fakeCredentialService implements credential.Service with func fields.
type fakeCredentialService struct {
	createUserFunc       func(ctx context.Context, email, password string) (string, error)
	signInFunc           func(ctx context.Context, email, password string) (string, error)
	updateCredentialFunc func(ctx context.Context, id string, params credential.UpdateCredentialParams) error
	getUserByTokenFunc   func(ctx context.Context, accessToken string) (*credential.Identity, error)
	getOrCreateOAuthFunc func(ctx context.Context, provider, subject, email string, emailVerified bool) (string, error)
}

func (f *fakeCredentialService) CreateUser(ctx context.Context, email, password string) (string, error) {
	if f.createUserFunc == nil {
		return "auth-" + email, nil
	}
	return f.createUserFunc(ctx, email, password)
}

func (f *fakeCredentialService) SignIn(ctx context.Context, email, password string) (string, error) {
	if f.signInFunc == nil {
		return "auth-" + email, nil
	}
	return f.signInFunc(ctx, email, password)
}

func (f *fakeCredentialService) UpdateCredential(
	ctx context.Context,
	id string,
	params credential.UpdateCredentialParams,
) error {
	if f.updateCredentialFunc == nil {
		return nil
	}
	return f.updateCredentialFunc(ctx, id, params)
}

func (f *fakeCredentialService) GetUserByToken(
	ctx context.Context,
	accessToken string,
) (*credential.Identity, error) {
	if f.getUserByTokenFunc == nil {
		return nil, credential.ErrInvalidAccessToken
	}
	return f.getUserByTokenFunc(ctx, accessToken)
}

func (f *fakeCredentialService) GetOrCreateOAuthUser(
	ctx context.Context,
	provider, subject, email string,
	emailVerified bool,
) (string, error) {
	if f.getOrCreateOAuthFunc == nil {
		return "oauth-" + subject, nil
	}
	return f.getOrCreateOAuthFunc(ctx, provider, subject, email, emailVerified)
}

// memCredentialStore is a stateful credential.Service with the same attach
// and sign-in semantics as the mongo-backed store, for tests that span a
// whole flow rather than a single call.
type memCredentialStore struct {
	mu         sync.Mutex
	seq        int
	users      map[string]*memCredentialUser
	identities map[string]string
}

type memCredentialUser struct {
	id             string
	email          string
	passwordHash   string
	emailConfirmed bool
}

func newMemCredentialStore() *memCredentialStore {
	return &memCredentialStore{
		users:      make(map[string]*memCredentialUser),
		identities: make(map[string]string),
	}
}

func (s *memCredentialStore) CreateUser(_ context.Context, email, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	passwordHash := ""
	if password != "" {
		for _, u := range s.users {
			if strings.EqualFold(u.email, email) && u.passwordHash != "" {
				return "", credential.ErrUserExists
			}
		}
		hash, err := security.HashPassword(password)
		if err != nil {
			return "", err
		}
		passwordHash = hash
	}

	s.seq++
	id := fmt.Sprintf("cred-%d", s.seq)
	s.users[id] = &memCredentialUser{id: id, email: email, passwordHash: passwordHash}
	return id, nil
}

func (s *memCredentialStore) SignIn(_ context.Context, email, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if !strings.EqualFold(u.email, email) || u.passwordHash == "" {
			continue
		}
		ok, err := security.VerifyPassword(password, u.passwordHash)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", credential.ErrInvalidCredentials
		}
		return u.id, nil
	}
	return "", credential.ErrInvalidCredentials
}

func (s *memCredentialStore) UpdateCredential(
	_ context.Context,
	id string,
	params credential.UpdateCredentialParams,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return credential.ErrUserNotFound
	}
	if params.Password != nil {
		hash, err := security.HashPassword(*params.Password)
		if err != nil {
			return err
		}
		u.passwordHash = hash
	}
	if params.Email != nil {
		u.email = *params.Email
	}
	if params.EmailConfirmed != nil {
		u.emailConfirmed = *params.EmailConfirmed
	}
	return nil
}

func (s *memCredentialStore) GetUserByToken(_ context.Context, _ string) (*credential.Identity, error) {
	return nil, credential.ErrInvalidAccessToken
}

func (s *memCredentialStore) GetOrCreateOAuthUser(
	ctx context.Context,
	provider, subject, email string,
	emailVerified bool,
) (string, error) {
	s.mu.Lock()
	key := provider + "/" + subject
	if id, ok := s.identities[key]; ok {
		s.mu.Unlock()
		return id, nil
	}

	if emailVerified {
		for _, u := range s.users {
			if strings.EqualFold(u.email, email) {
				s.identities[key] = u.id
				s.mu.Unlock()
				return u.id, nil
			}
		}
	}
	s.mu.Unlock()

	id, err := s.CreateUser(ctx, email, "")
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.identities[key] = id
	s.mu.Unlock()
	return id, nil
}

// fakeNotifier records deliveries and can simulate delivery failures.
type fakeNotifier struct {
	mu         sync.Mutex
	sendErr    error
	sentCodes  []string
	sentResets []string
	sentLinks  []string
	events     []string
}

func (f *fakeNotifier) SendVerificationCode(to, code, profileID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentCodes = append(f.sentCodes, to+":"+code)
	return nil
}

func (f *fakeNotifier) SendPasswordResetLink(to, token, profileID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentResets = append(f.sentResets, to+":"+token)
	return nil
}

func (f *fakeNotifier) SendEmailChangeLink(newEmail, token, profileID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentLinks = append(f.sentLinks, newEmail+":"+token)
	return nil
}

func (f *fakeNotifier) EmitEvent(_ context.Context, _ bson.ObjectID, kind, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, kind)
}

// fakeSettingsRepo records provisioned profiles.
type fakeSettingsRepo struct {
	mu          sync.Mutex
	provisioned []string
	createErr   error
}

func (f *fakeSettingsRepo) CreateDefault(_ context.Context, profileID bson.ObjectID) (*model.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.provisioned = append(f.provisioned, profileID.Hex())
	return &model.Settings{ProfileID: profileID, Theme: model.DefaultTheme, Locale: model.DefaultLocale}, nil
}

// fakeSessionRepo stores sessions in memory keyed by hex object ID.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.Session)}
}

func (f *fakeSessionRepo) CreateSession(_ context.Context, session *model.Session) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session.ID = bson.NewObjectID()
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	clone := *session
	f.sessions[session.ID.Hex()] = &clone
	return session, nil
}

// byAuthUserID inspects the stored session for an auth user.
func (f *fakeSessionRepo) byAuthUserID(authUserID string) (*model.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.sessions {
		if s.AuthUserID == authUserID {
			clone := *s
			return &clone, true
		}
	}
	return nil, false
}

func (f *fakeSessionRepo) UpdateTokens(
	_ context.Context,
	id string,
	params repository.UpdateTokensParams,
) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	s.AccessToken = params.AccessToken
	s.RefreshToken = params.RefreshToken
	s.AccessTokenExpiresAt = params.AccessTokenExpiresAt
	s.RefreshTokenExpiresAt = params.RefreshTokenExpiresAt
	clone := *s
	return &clone, nil
}

func testConfig() *config.AccountServiceConfig {
	return &config.AccountServiceConfig{
		Token: config.TokenConfig{
			Issuer:                "reunite-test",
			AccessTokenSecret:     "access-secret",
			AccessTokenExpiresIn:  15 * time.Minute,
			RefreshTokenSecret:    "refresh-secret",
			RefreshTokenExpiresIn: 720 * time.Hour,
		},
		Verification: config.VerificationConfig{
			CodeExpiresIn:          24 * time.Hour,
			ResetTokenExpiresIn:    24 * time.Hour,
			ChangeTokenExpiresIn:   24 * time.Hour,
			EmailChangeMinInterval: 24 * time.Hour,
		},
	}
}
