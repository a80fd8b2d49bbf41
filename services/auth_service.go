package services

import (
	"fmt"
	"time"

	"chat-room/auth"
	"chat-room/domain"
	"chat-room/errors"
	"chat-room/repositories"
)

type IAuthService interface {
	Register(email, displayName, password string) (Token, error)
	Login(email, password string) (Token, error)
}

type Token string

func (t Token) String() string {
	return string(t)
}

type AuthService struct {
	users    repositories.IUserRepository
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthService(users repositories.IUserRepository, secret []byte, tokenTTL time.Duration) IAuthService {
	return &AuthService{users: users, secret: secret, tokenTTL: tokenTTL}
}

func (s *AuthService) Register(email, displayName, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Email:       email,
		DisplayName: displayName,
		Password:    password,
	}

	// 1. Validate business rules (email format, password complexity)
	// We check this before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// 2. Hash the password using Argon2id
	// Done in the service layer to keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user with the generated hash
	userID, err := s.users.CreateUser(email, displayName, hashedPassword, domain.RoleUser)
	if err != nil {
		return "", err // Will propagate ErrUserAlreadyExists if email is taken
	}

	// 4. Generate the initial session token
	token, err := auth.GenerateToken(s.secret, domain.Identity{
		UserID:      userID,
		DisplayName: displayName,
		Role:        domain.RoleUser,
	}, s.tokenTTL)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	// 1. Retrieve user by email from storage
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	// 2. Compare the provided password with the stored hash
	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	// 3. Issue the JWT token
	token, err := auth.GenerateToken(s.secret, user.Identity(), s.tokenTTL)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	return Token(token), nil
}
