//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"

	"talk-hub/auth"
	"talk-hub/domain"
	apperrors "talk-hub/errors"
	"talk-hub/repositories"
)

type IAuthService interface {
	Register(username, password string) error
	Login(username, password string) (domain.Token, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         auth.TokenService
}

func NewAuthService(repo repositories.IUserRepository, tokens auth.TokenService) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

// Register creates a new identity. The password is hashed in the service
// layer to keep the repository unaware of plain passwords. No token is
// issued here: the contract expects a separate login.
func (s *AuthService) Register(username, password string) error {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}

	// Propagates ErrUserAlreadyExists if the username is taken.
	// The check and the insert are atomic in the repository.
	return s.userRepository.CreateUser(username, hashedPassword)
}

// Login verifies credentials and issues a session token. An unknown
// username and a wrong password both yield the same ErrInvalidCredentials,
// to prevent user enumeration.
func (s *AuthService) Login(username, password string) (domain.Token, error) {
	identity, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		return "", apperrors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, identity.PasswordHash)
	if err != nil || !match {
		return "", apperrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(identity.Username)
	if err != nil {
		return "", fmt.Errorf("token generation failed: %w", err)
	}

	return domain.Token(token), nil
}
