package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/juanse07/nexa-sub001/config"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Caller roles carried in the token
const (
	RoleStaff   = "staff"
	RoleManager = "manager"
)

// Claims carries the verified identity. Subject lives in RegisteredClaims.
type Claims struct {
	Provider  string `json:"provider"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`                 // staff | manager
	ManagerID string `json:"manager_id,omitempty"` // managers only
	TokenType string `json:"token_type"`
	jwtv5.RegisteredClaims
}

// Manager signs and verifies HS256 tokens.
type Manager struct {
	secret         []byte
	issuer         string
	accessTokenTTL time.Duration
}

// NewManager creates the token manager.
func NewManager(cfg *config.AuthConfig) *Manager {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "nexa"
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{
		secret:         []byte(cfg.JWTSecret),
		issuer:         issuer,
		accessTokenTTL: ttl,
	}
}

// TokenSubject is the identity a token is minted for.
type TokenSubject struct {
	Provider  string
	Subject   string
	Name      string
	Email     string
	Role      string
	ManagerID string
}

// GenerateAccessToken mints an access token. Production tokens come from the
// identity provider; this exists for tooling and tests.
func (m *Manager) GenerateAccessToken(s TokenSubject) (string, error) {
	now := time.Now()
	claims := Claims{
		Provider:  s.Provider,
		Name:      s.Name,
		Email:     s.Email,
		Role:      s.Role,
		ManagerID: s.ManagerID,
		TokenType: "access",
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   s.Subject,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.accessTokenTTL)),
			Issuer:    m.issuer,
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken verifies signature and expiry.
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
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
	if claims.Provider == "" || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
