// Package identity turns bearer tokens issued by the account service into the
// acting principal consumed by the core. Accounts themselves live elsewhere.
package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/technerv/election-monitor/pkg/domain"
	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
)

// Claims carries the principal flags alongside the registered claims.
type Claims struct {
	IsAdmin            bool `json:"is_admin"`
	IsVerifiedObserver bool `json:"is_verified_observer"`
	jwt.RegisteredClaims
}

// TokenService signs and validates HS256 identity tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewTokenService(signingKey, issuer, audience string) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Issue signs a token for p. Used by the account collaborator and tests.
func (s *TokenService) Issue(p domain.Principal, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		IsAdmin:            p.IsAdmin,
		IsVerifiedObserver: p.IsVerifiedObserver,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Validate parses the token and returns the principal it asserts.
func (s *TokenService) Validate(tokenString string) (domain.Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return domain.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Subject == "" {
		return domain.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "token subject is required")
	}

	return domain.Principal{
		ID:                 claims.Subject,
		IsAdmin:            claims.IsAdmin,
		IsVerifiedObserver: claims.IsVerifiedObserver,
	}, nil
}
