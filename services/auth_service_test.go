package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"talk-hub/auth"
	"talk-hub/domain"
	apperrors "talk-hub/errors"
	"talk-hub/mocks"
)

func newTokenService() auth.TokenService {
	return auth.NewTokenService("test_signing_secret", time.Hour)
}

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewAuthService(mockRepo, newTokenService())

	t.Run("should register successfully and store a hash, not the password", func(t *testing.T) {
		req := require.New(t)

		var storedHash string
		mockRepo.EXPECT().
			CreateUser("alice", gomock.Any()).
			Do(func(username, hashedPassword string) { storedHash = hashedPassword }).
			Return(nil).
			Times(1)

		err := svc.Register("alice", "secret1")

		req.NoError(err)
		req.NotEqual("secret1", storedHash)

		match, err := auth.ComparePassword("secret1", storedHash)
		req.NoError(err)
		req.True(match)
	})

	t.Run("should propagate duplicate username", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("alice", gomock.Any()).
			Return(apperrors.ErrUserAlreadyExists).
			Times(1)

		err := svc.Register("alice", "secret1")

		req.ErrorIs(err, apperrors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := newTokenService()
	svc := NewAuthService(mockRepo, tokens)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)

		hashedPassword, _ := auth.HashPassword("secret1")
		mockRepo.EXPECT().
			GetUserByUsername("alice").
			Return(domain.Identity{Username: "alice", PasswordHash: hashedPassword}, nil).
			Times(1)

		token, err := svc.Login("alice", "secret1")

		req.NoError(err)
		req.NotEmpty(token)

		// The token is bound to the identity
		username, err := tokens.Verify(string(token))
		req.NoError(err)
		req.Equal("alice", username)
	})

	t.Run("should return invalid credentials on wrong password", func(t *testing.T) {
		req := require.New(t)

		hashedPassword, _ := auth.HashPassword("secret1")
		mockRepo.EXPECT().
			GetUserByUsername("alice").
			Return(domain.Identity{Username: "alice", PasswordHash: hashedPassword}, nil).
			Times(1)

		_, err := svc.Login("alice", "wrong")

		req.ErrorIs(err, apperrors.ErrInvalidCredentials)
	})

	t.Run("should return the same error when the user is unknown", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByUsername("nobody").
			Return(domain.Identity{}, apperrors.ErrInvalidCredentials).
			Times(1)

		_, err := svc.Login("nobody", "anything")

		req.ErrorIs(err, apperrors.ErrInvalidCredentials)
	})
}
