// Package auth registers and signs in users and issues the bearer tokens that
// attach history to an account.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mimir-aip/cropwise/pkg/history"
	"github.com/mimir-aip/cropwise/pkg/models"
)

// DefaultTokenExpiry is how long an issued token stays valid
const DefaultTokenExpiry = 24 * time.Hour

const issuer = "cropwise"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims are carried by every issued token
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// UserStore persists accounts
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Manager handles registration, login and token checks
type Manager struct {
	secret []byte
	expiry time.Duration
	users  UserStore
	now    func() time.Time
}

// NewManager signs tokens with secret. A zero expiry uses DefaultTokenExpiry.
func NewManager(secret string, expiry time.Duration, users UserStore) *Manager {
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &Manager{secret: []byte(secret), expiry: expiry, users: users, now: time.Now}
}

// Register creates an account and signs the user in
func (m *Manager) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		CreatedAt:    m.now(),
	}
	if err := m.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, history.ErrEmailTaken) {
			return nil, models.NewValidationFault("register", err)
		}
		return nil, err
	}

	token, err := m.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Message: "User registered successfully", Token: token, User: user}, nil
}

// Login checks the password and issues a token
func (m *Manager) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := m.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, history.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := m.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Message: "Login successful", Token: token, User: user}, nil
}

// GenerateToken signs an HS256 token for user
func (m *Manager) GenerateToken(user *models.User) (string, error) {
	now := m.now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   user.ID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a signed token
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserIDFromRequest returns the user behind a valid bearer token, or "" for
// anonymous and invalid callers
func (m *Manager) UserIDFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	claims, err := m.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return ""
	}
	return claims.UserID
}
