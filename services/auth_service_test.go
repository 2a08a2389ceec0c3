package services

import (
	"testing"
	"time"

	"direct-chat/auth"
	"direct-chat/errors"
	"direct-chat/mocks"
	"direct-chat/repositories"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("test-secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		username := "alice"
		password := "ComplexPass123!"
		expectedUserID := "user-uuid"

		// Expect CreateUser to be called with a hashed password (not the plain one)
		mockRepo.EXPECT().
			CreateUser(username, gomock.Any()).
			DoAndReturn(func(name, hashed string) (string, error) {
				require.NotEqual(t, password, hashed)
				return expectedUserID, nil
			}).
			Times(1)

		token, err := svc.Register(username, password)

		req.NoError(err)
		req.NotEmpty(token)

		// The token must resolve back to the registered identity
		validated, err := tokens.Validate(string(token))
		req.NoError(err)
		req.Equal(username, validated)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		token, err := svc.Register("alice", "simple")

		req.Error(err)
		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should fail when username contains the room separator", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Register("al_ice", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrInvalidUsername)
	})

	t.Run("should report a bad username as such, not as a bad password", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Register("al", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrInvalidUsername)
		req.NotErrorIs(err, errors.ErrInvalidPassword)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("duplicate", gomock.Any()).
			Return("", errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register("duplicate", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("test-secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		username := "alice"
		password := "Secret123456!"

		hashedPassword, _ := auth.HashPassword(password)
		storedUser := repositories.User{
			ID:           "uuid-123",
			Username:     username,
			PasswordHash: hashedPassword,
			Roles:        []string{"user"},
		}

		mockRepo.EXPECT().
			GetUserByUsername(username).
			Return(storedUser, nil).
			Times(1)

		token, err := svc.Login(username, password)

		req.NoError(err)
		req.NotEmpty(token)

		validated, err := tokens.Validate(string(token))
		req.NoError(err)
		req.Equal(username, validated)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)

		hashedPassword, _ := auth.HashPassword("CorrectPassword123!")
		storedUser := repositories.User{
			Username:     "alice",
			PasswordHash: hashedPassword,
		}

		mockRepo.EXPECT().
			GetUserByUsername("alice").
			Return(storedUser, nil).
			Times(1)

		_, err := svc.Login("alice", "WrongPassword123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByUsername("unknown").
			Return(repositories.User{}, errors.ErrUnknownPeer).
			Times(1)

		_, err := svc.Login("unknown", "anyPassword")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
