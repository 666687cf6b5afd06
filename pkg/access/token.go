package access

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
)

// TokenManager issues and verifies short-lived bearer tokens scoped to a
// single repository. The LFS batch response hands these to the client so
// object transfers do not replay basic credentials.
type TokenManager struct {
	secret []byte
	issuer string
}

// NewTokenManager creates a token manager signing with the given secret.
func NewTokenManager(secret, issuer string) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Claims are the claims carried by a repository-scoped token.
type Claims struct {
	jwt.RegisteredClaims
	Repo string `json:"repo"`
}

// Issue returns a signed token for the user on the repository.
func (t *TokenManager) Issue(user *proto.User, repo string, ttl time.Duration) (string, error) {
	now := time.Now()
	sub := ""
	if user != nil {
		sub = user.Username
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   sub,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Repo: repo,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses a token and checks it grants access to the repository. It
// fails with proto.ErrUnauthorized for invalid, expired or wrongly scoped
// tokens.
func (t *TokenManager) Verify(token, repo string) (*proto.User, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer))
	if err != nil || !parsed.Valid {
		return nil, proto.ErrUnauthorized
	}

	if claims.Repo != repo {
		return nil, proto.ErrUnauthorized
	}

	if claims.Subject == "" {
		return nil, nil
	}

	return &proto.User{Username: claims.Subject}, nil
}
