package jwt

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadSecret is returned when the presented admin secret does not
// match the configured hash.
var ErrBadSecret = errors.New("admin secret does not match")

// RoleAdmin is the only role the ops API knows.
const RoleAdmin = "admin"

// Service issues and validates admin API tokens. Admin identity is a
// single shared secret, stored only as a bcrypt hash.
type Service struct {
	secretKey  string
	secretHash string
	expiry     time.Duration
}

// NewService creates a new token service.
func NewService(secretKey, adminSecretHash string, expiry time.Duration) *Service {
	if expiry == 0 {
		expiry = 24 * time.Hour
	}
	return &Service{
		secretKey:  secretKey,
		secretHash: adminSecretHash,
		expiry:     expiry,
	}
}

// Login verifies the admin secret against the stored bcrypt hash and
// issues a token on success.
func (s *Service) Login(secret string) (string, error) {
	if s.secretHash == "" {
		return "", ErrBadSecret
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.secretHash), []byte(secret)); err != nil {
		return "", ErrBadSecret
	}
	return GenerateToken(s.secretKey, RoleAdmin, s.expiry)
}

// Validate checks a bearer token and returns its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	return ValidateToken(s.secretKey, tokenString)
}
