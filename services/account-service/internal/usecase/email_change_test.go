package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reunitehq/reunite-api/services/account-service/internal/credential"
	"github.com/reunitehq/reunite-api/services/account-service/internal/model"
	"github.com/reunitehq/reunite-api/services/account-service/internal/tokenslot"
)

func newChangeFixture() (*fakeProfileRepo, *fakeCredentialService, *fakeNotifier, EmailChangeUsecase) {
	profiles := newFakeProfileRepo()
	creds := &fakeCredentialService{}
	notify := &fakeNotifier{}
	logger := zerolog.Nop()

	uc := NewEmailChangeUsecase(profiles, creds, notify, testConfig(), &logger)
	return profiles, creds, notify, uc
}

func TestRequestChange(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown profile rejected", func(t *testing.T) {
		_, _, _, uc := newChangeFixture()

		err := uc.RequestChange(ctx, "auth-1", "64f000000000000000000000", "new@example.com")
		assert.ErrorIs(t, err, ErrProfileNotFound)
	})

	t.Run("caller must own the profile", func(t *testing.T) {
		profiles, _, notify, uc := newChangeFixture()
		victim := profiles.add(model.Profile{Email: "victim@example.com", AuthUserID: "auth-victim"})
		profiles.add(model.Profile{Email: "attacker@example.com", AuthUserID: "auth-attacker"})

		err := uc.RequestChange(ctx, "auth-attacker", victim, "attacker-inbox@example.com")
		assert.ErrorIs(t, err, ErrNotProfileOwner)

		err = uc.RequestChange(ctx, "", victim, "attacker-inbox@example.com")
		assert.ErrorIs(t, err, ErrNotProfileOwner)

		// No token was issued and nothing was mailed.
		p, getErr := profiles.GetProfile(ctx, victim)
		require.NoError(t, getErr)
		assert.True(t, p.ChangeSlot.Empty())
		assert.Empty(t, notify.sentLinks)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		profiles, _, _, uc := newChangeFixture()
		id := profiles.add(model.Profile{Email: "user@example.com", AuthUserID: "auth-1"})
		profiles.add(model.Profile{Email: "taken@example.com"})

		err := uc.RequestChange(ctx, "auth-1", id, "Taken@Example.com")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("token mailed to the new address with pending value", func(t *testing.T) {
		profiles, _, notify, uc := newChangeFixture()
		id := profiles.add(model.Profile{Email: "user@example.com", AuthUserID: "auth-1"})

		require.NoError(t, uc.RequestChange(ctx, "auth-1", id, "new@example.com"))
		require.Len(t, notify.sentLinks, 1)
		assert.Contains(t, notify.sentLinks[0], "new@example.com:")

		p, err := profiles.GetProfile(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", p.ChangeSlot.PendingEmail)
		assert.False(t, p.ChangeSlot.Empty())
	})

	t.Run("delivery failure rolls back token and pending value", func(t *testing.T) {
		profiles, _, notify, uc := newChangeFixture()
		id := profiles.add(model.Profile{Email: "user@example.com", AuthUserID: "auth-1"})
		notify.sendErr = errors.New("smtp down")

		require.Error(t, uc.RequestChange(ctx, "auth-1", id, "new@example.com"))

		p, err := profiles.GetProfile(ctx, id)
		require.NoError(t, err)
		assert.True(t, p.ChangeSlot.Empty())
		assert.Empty(t, p.ChangeSlot.PendingEmail)
	})

	t.Run("rate limited inside the rolling window", func(t *testing.T) {
		profiles, _, _, uc := newChangeFixture()
		id := profiles.add(model.Profile{
			Email:             "user@example.com",
			AuthUserID:        "auth-1",
			LastEmailChangeAt: time.Now().Add(-23 * time.Hour),
		})

		var rateErr *RateLimitedError
		err := uc.RequestChange(ctx, "auth-1", id, "new@example.com")
		require.ErrorAs(t, err, &rateErr)
		assert.Equal(t, 1, rateErr.HoursRemaining)
	})

	t.Run("allowed outside the rolling window", func(t *testing.T) {
		profiles, _, _, uc := newChangeFixture()
		id := profiles.add(model.Profile{
			Email:             "user@example.com",
			AuthUserID:        "auth-1",
			LastEmailChangeAt: time.Now().Add(-25 * time.Hour),
		})

		assert.NoError(t, uc.RequestChange(ctx, "auth-1", id, "new@example.com"))
	})
}

func TestConfirmChange(t *testing.T) {
	ctx := context.Background()

	seed := func(profiles *fakeProfileRepo) string {
		return profiles.add(model.Profile{
			Email:      "user@example.com",
			AuthUserID: "auth-1",
			ChangeSlot: tokenslot.Issue("tok", time.Now(), time.Hour, "new@example.com"),
		})
	}

	t.Run("promotes the pending email", func(t *testing.T) {
		profiles, creds, notify, uc := newChangeFixture()
		id := seed(profiles)

		var credEmail string
		creds.updateCredentialFunc = func(_ context.Context, credID string, params credential.UpdateCredentialParams) error {
			require.Equal(t, "auth-1", credID)
			require.NotNil(t, params.Email)
			credEmail = *params.Email
			return nil
		}

		require.NoError(t, uc.ConfirmChange(ctx, id, "tok"))
		assert.Equal(t, "new@example.com", credEmail)

		p, err := profiles.GetProfile(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", p.Email)
		assert.False(t, p.LastEmailChangeAt.IsZero())
		assert.True(t, p.ChangeSlot.Empty())
		assert.Contains(t, notify.events, model.NotificationEmailChanged)
	})

	t.Run("one shot consumption", func(t *testing.T) {
		profiles, _, _, uc := newChangeFixture()
		id := seed(profiles)

		require.NoError(t, uc.ConfirmChange(ctx, id, "tok"))

		err := uc.ConfirmChange(ctx, id, "tok")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("credential failure surfaces", func(t *testing.T) {
		profiles, creds, _, uc := newChangeFixture()
		id := seed(profiles)

		creds.updateCredentialFunc = func(context.Context, string, credential.UpdateCredentialParams) error {
			return errors.New("credential store down")
		}

		require.Error(t, uc.ConfirmChange(ctx, id, "tok"))

		// The token was consumed before the credential write, so the flow
		// must be restarted rather than retried with the same token.
		p, err := profiles.GetProfile(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "user@example.com", p.Email)
		assert.True(t, p.ChangeSlot.Empty())
	})

	t.Run("expired token clears the slot terminally", func(t *testing.T) {
		profiles, _, _, uc := newChangeFixture()
		id := profiles.add(model.Profile{
			Email:      "user@example.com",
			AuthUserID: "auth-1",
			ChangeSlot: tokenslot.Issue("tok", time.Now().Add(-2*time.Hour), time.Hour, "new@example.com"),
		})

		err := uc.ConfirmChange(ctx, id, "tok")
		assert.ErrorIs(t, err, ErrTokenExpired)

		err = uc.ConfirmChange(ctx, id, "tok")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})
}
