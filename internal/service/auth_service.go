package service

import (
	"context"
	"errors"
	"time"

	"pos-service/internal/apperr"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const defaultTokenTTL = 24 * time.Hour

var errInvalidCredentials = apperr.Unauthorized("invalid credentials")

// StaffStore is the persistence AuthService needs
type StaffStore interface {
	CreateStaffUser(ctx context.Context, u *models.StaffUser) error
	GetStaffUserByUsername(ctx context.Context, username string) (*models.StaffUser, error)
	GetStaffUserByID(ctx context.Context, id int64) (*models.StaffUser, error)
	CountStaffUsers(ctx context.Context) (int, error)
}

// PasswordHasher hashes and checks staff passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// BcryptHasher is the production PasswordHasher
type BcryptHasher struct {
	Cost int
}

func (b BcryptHasher) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// StaffClaims are the claims carried by a staff bearer token
type StaffClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// LoginResult is returned to a staff member who signed in
type LoginResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      *models.StaffUser `json:"user"`
}

// AuthService signs staff in and issues HS256 bearer tokens
type AuthService struct {
	store  StaffStore
	hasher PasswordHasher
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewAuthService creates a new auth service. A zero ttl means 24 hours.
func NewAuthService(store StaffStore, hasher PasswordHasher, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthService{
		store:  store,
		hasher: hasher,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		logger: util.Logger("auth"),
	}
}

// Login checks a username and password and issues a token. Unknown users,
// wrong passwords and disabled accounts all fail the same way.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if len(s.secret) == 0 {
		return nil, errors.New("token signing secret is not configured")
	}

	user, err := s.store.GetStaffUserByUsername(ctx, username)
	if apperr.IsNotFound(err) {
		s.logger.Info("Login failed", zap.String("username", username), zap.String("reason", "unknown user"))
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.logger.Info("Login failed", zap.String("username", username), zap.String("reason", "wrong password"))
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		s.logger.Info("Login failed", zap.String("username", username), zap.String("reason", "inactive"))
		return nil, errInvalidCredentials
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := &StaffClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Staff signed in", zap.Int64("user_id", user.ID), zap.String("role", user.Role))
	return &LoginResult{Token: token, ExpiresAt: expires, User: user}, nil
}

// Me returns the account behind a token, refusing accounts disabled since
// the token was issued.
func (s *AuthService) Me(ctx context.Context, userID int64) (*models.StaffUser, error) {
	user, err := s.store.GetStaffUserByID(ctx, userID)
	if apperr.IsNotFound(err) {
		return nil, apperr.Unauthorized("account no longer exists")
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("account is disabled")
	}
	return user, nil
}

// EnsureAdmin creates an admin account when no staff exist yet. It does
// nothing without credentials or once any account exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	n, err := s.store.CountStaffUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	admin := &models.StaffUser{
		Username:     username,
		FullName:     "Administrator",
		PasswordHash: hash,
		Role:         models.StaffRoleAdmin,
		IsActive:     true,
	}
	if err := s.store.CreateStaffUser(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("Bootstrap admin created", zap.Int64("user_id", admin.ID), zap.String("username", admin.Username))
	return nil
}
