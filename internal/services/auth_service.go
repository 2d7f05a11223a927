package services

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"library/internal/auth"
	"library/internal/models"
	"library/internal/repositories"
)

// AuthResult is what a successful register or login yields.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthService registers accounts, issues tokens and serves the caller's
// own profile.
type AuthService interface {
	Register(username, email, password string) (*AuthResult, error)
	Login(username, password string) (*AuthResult, error)
	Profile(userID uuid.UUID) (*models.User, error)
}

type authService struct {
	db          *gorm.DB
	userRepo    repositories.UserRepository
	hasher      auth.PasswordHasher
	tokenSecret string
	tokenTTL    time.Duration
}

// NewAuthService wires up the auth service around an injected password hasher.
func NewAuthService(
	db *gorm.DB,
	userRepo repositories.UserRepository,
	hasher auth.PasswordHasher,
	tokenSecret string,
	tokenTTL time.Duration,
) AuthService {
	return &authService{
		db:          db,
		userRepo:    userRepo,
		hasher:      hasher,
		tokenSecret: tokenSecret,
		tokenTTL:    tokenTTL,
	}
}

// Register creates a new account with the default User role and returns a
// fresh token for it.
func (s *authService) Register(username, email, password string) (*AuthResult, error) {
	var user *models.User

	err := s.db.Transaction(func(tx *gorm.DB) error {
		taken, err := s.userRepo.UsernameExists(tx, username)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}
		taken, err = s.userRepo.EmailExists(tx, email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}

		hash, err := s.hasher.Hash(password)
		if err != nil {
			return err
		}
		user = &models.User{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			Role:         models.UserRoleUser,
		}
		return s.userRepo.Create(tx, user)
	})
	if err != nil {
		return nil, err
	}

	token, err := auth.GenerateToken(s.tokenSecret, user.ID.String(), string(user.Role), s.tokenTTL)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Register: created user %q (id=%s)", user.Username, user.ID)
	return &AuthResult{Token: token, User: user}, nil
}

// Login verifies credentials and issues a token. Unknown username and wrong
// password both surface as ErrInvalidCredentials.
func (s *authService) Login(username, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByUsername(nil, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		log.Printf("[WARN] Login: failed password for user %q", username)
		return nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(s.tokenSecret, user.ID.String(), string(user.Role), s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Profile returns the account behind an authenticated identity.
func (s *authService) Profile(userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
