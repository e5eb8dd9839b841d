package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"grocery-delivery/internal/domain"
)

const RoleAdmin = "admin"

// Identity is what a verified bearer token says about its holder.
type Identity struct {
	UserID string
	Role   string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// JWTService verifies HS256 tokens carrying user_id and role claims.
type JWTService struct {
	Secret []byte
	TTL    time.Duration
	now    func() time.Time
}

func NewJWTService(secret string) *JWTService {
	return &JWTService{Secret: []byte(secret), TTL: 7 * 24 * time.Hour, now: time.Now}
}

// Issue mints a token; the storefront's login flow normally does this.
func (s *JWTService) Issue(userID, role string) (string, error) {
	if userID == "" {
		return "", domain.ValidationError("user id required")
	}
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"iat":     now.Unix(),
		"exp":     now.Add(s.TTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

func (s *JWTService) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Identity{}, domain.AuthenticationError("missing token")
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, domain.AuthenticationError("token expired")
		}
		return Identity{}, domain.AuthenticationError("invalid token")
	}
	m, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Identity{}, domain.AuthenticationError("invalid claims")
	}
	uid, _ := m["user_id"].(string)
	if uid == "" {
		return Identity{}, domain.AuthenticationError("token has no user_id")
	}
	role, _ := m["role"].(string)
	return Identity{UserID: uid, Role: role}, nil
}
