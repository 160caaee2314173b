package auth

import (
	"context"
	"errors"
	"strings"

	"landlease/internal/domain"
	"landlease/internal/pkg/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Credentials is the register/login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identity is what a session remembers about its signed-in user.
type Identity struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Anonymous bool   `json:"anonymous"`
}

// Actor converts the identity into the value passed to the listing lifecycle.
func (i Identity) Actor() domain.Actor {
	return domain.Actor{UserID: i.UserID, Email: i.Email, Anonymous: i.Anonymous}
}

// Service signs users up and in against the Users table.
type Service struct {
	DB *gorm.DB
}

func checkCredentials(in Credentials) (string, error) {
	email := validation.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return "", ErrEmailPasswordRequired
	}
	if !validation.IsValidEmail(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Register creates a user with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, in Credentials) (*Identity, error) {
	email, err := checkCredentials(in)
	if err != nil {
		return nil, err
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, ErrWeakPassword
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{Email: email, PasswordHash: string(hash)}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &Identity{UserID: u.UserID.String(), Email: u.Email}, nil
}

// Login finds the user by email and verifies the password.
func (s *Service) Login(ctx context.Context, in Credentials) (*Identity, error) {
	email, err := checkCredentials(in)
	if err != nil {
		return nil, err
	}
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidEmail
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidEmail
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ErrIncorrectPassword
	}
	return &Identity{UserID: u.UserID.String(), Email: u.Email}, nil
}

// Anonymous returns a fresh guest identity. Guests are never stored.
func (s *Service) Anonymous() *Identity {
	return &Identity{UserID: "anon-" + uuid.New().String(), Anonymous: true}
}

// VerifyIdentity validates the identity stored in a session (nil when signed out).
func VerifyIdentity(sessionUser interface{}) (*Identity, error) {
	m, ok := sessionUser.(map[string]interface{})
	if !ok || m == nil {
		return nil, ErrNotAuthenticated
	}
	userID, _ := m["user_id"].(string)
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	email, _ := m["email"].(string)
	anon, _ := m["anonymous"].(bool)
	return &Identity{UserID: userID, Email: email, Anonymous: anon}, nil
}
