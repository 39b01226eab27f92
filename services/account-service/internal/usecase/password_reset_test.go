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
	"github.com/reunitehq/reunite-api/shared/security"
)

func newResetFixture() (*fakeProfileRepo, *fakeCredentialService, *fakeNotifier, PasswordResetUsecase) {
	profiles := newFakeProfileRepo()
	creds := &fakeCredentialService{}
	notify := &fakeNotifier{}
	logger := zerolog.Nop()

	uc := NewPasswordResetUsecase(profiles, creds, notify, testConfig(), &logger)
	return profiles, creds, notify, uc
}

func TestRequestReset(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email masked as success", func(t *testing.T) {
		_, _, notify, uc := newResetFixture()

		require.NoError(t, uc.RequestReset(ctx, "nobody@example.com"))
		assert.Empty(t, notify.sentResets)
	})

	t.Run("passwordless profile masked as success without token", func(t *testing.T) {
		profiles, _, notify, uc := newResetFixture()
		id := profiles.add(model.Profile{Email: "user@example.com", HasPassword: false})

		require.NoError(t, uc.RequestReset(ctx, "user@example.com"))
		assert.Empty(t, notify.sentResets)

		// The validate endpoint must see no token either.
		err := uc.ValidateResetToken(ctx, id, "anything")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("issues and delivers a reset token", func(t *testing.T) {
		profiles, _, notify, uc := newResetFixture()
		id := profiles.add(model.Profile{Email: "user@example.com", HasPassword: true})

		require.NoError(t, uc.RequestReset(ctx, "user@example.com"))
		require.Len(t, notify.sentResets, 1)

		p, err := profiles.GetProfile(ctx, id)
		require.NoError(t, err)
		require.False(t, p.ResetSlot.Empty())
		assert.Len(t, p.ResetSlot.Token, 64)
		assert.NoError(t, uc.ValidateResetToken(ctx, id, p.ResetSlot.Token))
	})

	t.Run("delivery failure rolls back the token", func(t *testing.T) {
		profiles, _, notify, uc := newResetFixture()
		id := profiles.add(model.Profile{Email: "user@example.com", HasPassword: true})
		notify.sendErr = errors.New("smtp down")

		require.Error(t, uc.RequestReset(ctx, "user@example.com"))

		p, err := profiles.GetProfile(ctx, id)
		require.NoError(t, err)
		assert.True(t, p.ResetSlot.Empty())
	})

	t.Run("re-issue invalidates the previous token", func(t *testing.T) {
		profiles, _, _, uc := newResetFixture()
		id := profiles.add(model.Profile{Email: "user@example.com", HasPassword: true})

		require.NoError(t, uc.RequestReset(ctx, "user@example.com"))
		first, err := profiles.GetProfile(ctx, id)
		require.NoError(t, err)

		require.NoError(t, uc.RequestReset(ctx, "user@example.com"))

		err = uc.ValidateResetToken(ctx, id, first.ResetSlot.Token)
		assert.ErrorIs(t, err, ErrTokenMismatch)
	})
}

func TestConfirmReset(t *testing.T) {
	ctx := context.Background()

	seed := func(profiles *fakeProfileRepo, token string) string {
		return profiles.add(model.Profile{
			Email:       "user@example.com",
			AuthUserID:  "auth-1",
			HasPassword: true,
			ResetSlot:   tokenslot.Issue(token, time.Now(), time.Hour, ""),
		})
	}

	t.Run("password policy enforced before token checks", func(t *testing.T) {
		profiles, _, _, uc := newResetFixture()
		id := seed(profiles, "tok")

		var policyErr *security.PolicyError
		err := uc.ConfirmReset(ctx, id, "tok", "short1!")
		require.ErrorAs(t, err, &policyErr)
		assert.Equal(t, "newPassword", policyErr.Field)

		// The token survives a policy failure.
		assert.NoError(t, uc.ValidateResetToken(ctx, id, "tok"))
	})

	t.Run("successful reset rotates the credential and consumes the token", func(t *testing.T) {
		profiles, creds, _, uc := newResetFixture()
		id := seed(profiles, "tok")

		var rotatedTo string
		creds.updateCredentialFunc = func(_ context.Context, credID string, params credential.UpdateCredentialParams) error {
			require.Equal(t, "auth-1", credID)
			require.NotNil(t, params.Password)
			rotatedTo = *params.Password
			return nil
		}

		require.NoError(t, uc.ConfirmReset(ctx, id, "tok", "longenough1!"))
		assert.Equal(t, "longenough1!", rotatedTo)

		// One-shot: an immediate retry with the same token fails.
		err := uc.ConfirmReset(ctx, id, "tok", "longenough1!")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("credential store failure surfaces as error", func(t *testing.T) {
		profiles, creds, _, uc := newResetFixture()
		id := seed(profiles, "tok")

		creds.updateCredentialFunc = func(context.Context, string, credential.UpdateCredentialParams) error {
			return errors.New("backend down")
		}

		err := uc.ConfirmReset(ctx, id, "tok", "longenough1!")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("expired token clears the slot terminally", func(t *testing.T) {
		profiles, _, _, uc := newResetFixture()
		id := profiles.add(model.Profile{
			Email:       "user@example.com",
			AuthUserID:  "auth-1",
			HasPassword: true,
			ResetSlot:   tokenslot.Issue("tok", time.Now().Add(-2*time.Hour), time.Hour, ""),
		})

		err := uc.ConfirmReset(ctx, id, "tok", "longenough1!")
		assert.ErrorIs(t, err, ErrTokenExpired)

		err = uc.ConfirmReset(ctx, id, "tok", "longenough1!")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})
}
