package identities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Aidin1998/botcontrol/pkg/models"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the hashing cost used for new passwords
	BcryptCost        = 10
	MinPasswordLength = 6
	// MaxPasswordBytes is the bcrypt input limit
	MaxPasswordBytes = 72
)

// Claims are the token claims issued on login
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// LoginResult is returned by a successful login
type LoginResult struct {
	User  models.UserInfo `json:"user"`
	Token string          `json:"token"`
}

// Service authenticates operators and issues signed tokens
type Service struct {
	logger   *zap.Logger
	store    UserStore
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// NewService creates a new identity service
func NewService(logger *zap.Logger, store UserStore, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		logger:   logger,
		store:    store,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// Login checks credentials and issues a token
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.Active {
		return nil, ErrAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), bcryptInput(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("User logged in", zap.String("username", user.Username))

	return &LoginResult{
		User:  models.UserInfo{ID: user.ID.Hex(), Username: user.Username},
		Token: token,
	}, nil
}

// ParseToken validates a token and returns its claims
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify validates a token and confirms the account behind it still exists and is active.
// A valid token for a deleted account yields ErrUserNotFound.
func (s *Service) Verify(ctx context.Context, tokenString string) (*models.UserInfo, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.lookup(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}

	return &models.UserInfo{ID: user.ID.Hex(), Username: user.Username}, nil
}

// Profile returns the profile of the user with the given id
func (s *Service) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	user, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}
	return &models.UserProfile{
		ID:        user.ID.Hex(),
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
		Active:    user.Active,
	}, nil
}

// CreateUser registers an active account with a bcrypt hashed password
func (s *Service) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if len(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if len(password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	if _, err := s.store.FindByUsername(ctx, username); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
		Active:       true,
	}
	if err := s.store.Insert(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User created", zap.String("username", username), zap.String("id", user.ID.Hex()))
	return user, nil
}

// ListUsers returns all accounts
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.store.List(ctx)
}

// SetActive enables or disables an account
func (s *Service) SetActive(ctx context.Context, username string, active bool) error {
	if err := s.store.SetActive(ctx, username, active); err != nil {
		return err
	}
	s.logger.Info("User status changed", zap.String("username", username), zap.Bool("active", active))
	return nil
}

// bcryptInput truncates to the bytes bcrypt uses, so hashes written by
// truncating implementations still verify
func bcryptInput(password string) []byte {
	if len(password) > MaxPasswordBytes {
		return []byte(password[:MaxPasswordBytes])
	}
	return []byte(password)
}

func (s *Service) lookup(ctx context.Context, userID string) (*models.User, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return s.store.FindByID(ctx, id)
}

func (s *Service) generateToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
