package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal roles carried in the token's role claim.
const (
	RoleUser   = "user"
	RoleDoctor = "doctor"
	RoleAdmin  = "admin"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates principal tokens with a single HMAC secret.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateJWT creates a new JWT token for a given principal.
func (m *JWTManager) GenerateJWT(principalID, role string) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("JWT_SECRET is not configured")
	}
	now := m.now()
	claims := &Claims{
		UserID: principalID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateJWT validates a given token string and returns its claims.
func (m *JWTManager) ValidateJWT(tokenStr string) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, errors.New("JWT_SECRET is not configured")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" || claims.Role == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
