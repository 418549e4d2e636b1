package auth

import (
	"errors"
	"strconv"
	"time"

	"academic-service/internal/config"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Claims struct {
	Username    string   `json:"username"`
	Permissions []string `json:"permissions"`
	jwtv5.RegisteredClaims
}

type JWTManager struct {
	secret         []byte
	accessTokenTTL time.Duration
	issuer         string
}

func NewJWTManager(cfg config.AuthConfig) *JWTManager {
	ttl := time.Duration(cfg.AccessTokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &JWTManager{
		secret:         []byte(cfg.JWTSecret),
		accessTokenTTL: ttl,
		issuer:         cfg.Issuer,
	}
}

func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.accessTokenTTL
}

func (m *JWTManager) GenerateAccessToken(user *User) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:    user.Username,
		Permissions: ParsePermissions(user.Permissions),
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.accessTokenTTL)),
			Issuer:    m.issuer,
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *JWTManager) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Caller converts verified claims into the identity passed to services.
func (c *Claims) Caller() (Caller, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Caller{}, ErrTokenInvalid
	}
	return Caller{UserID: id, Username: c.Username, Permissions: c.Permissions}, nil
}
