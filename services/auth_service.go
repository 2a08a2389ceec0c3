package services

import (
	"fmt"

	"direct-chat/auth"
	"direct-chat/errors"
	"direct-chat/repositories"
)

type IAuthService interface {
	Login(username, password string) (Token, error)
	Register(username, password string) (Token, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
}

type Token string

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Password: password,
	}

	// Validate business rules (name charset, password complexity)
	// before any expensive cryptographic operation. The validator
	// already speaks the error taxonomy, so its verdict passes through.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", err
	}

	// Hashing happens in the service layer to keep the repository
	// unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	if _, err = s.userRepository.CreateUser(username, hashedPassword); err != nil {
		return "", err // propagates ErrUserAlreadyExists when the name is taken
	}

	token, err := s.tokens.Generate(username, []string{"user"})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(username, password string) (Token, error) {
	user, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		// Generic error to prevent user enumeration.
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.Username, user.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
