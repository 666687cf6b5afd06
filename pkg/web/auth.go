package web

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/swadhinbiswas/opencodehub/pkg/access"
	"github.com/swadhinbiswas/opencodehub/pkg/backend"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"github.com/swadhinbiswas/opencodehub/pkg/utils"
)

var (
	// ErrInvalidPassword is returned when the password is invalid.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrInvalidToken is returned when a bearer token is invalid.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidHeader is returned when the authorization header is invalid.
	ErrInvalidHeader = errors.New("invalid authorization header")

	// ErrMissingHeader is returned when the authorization header is missing.
	ErrMissingHeader = errors.New("missing authorization header")
)

// authenticate authenticates the request against the access gate. Basic
// credentials go through the gate; bearer tokens are repository scoped
// tokens handed out by the LFS batch endpoint.
func authenticate(r *http.Request) (*proto.User, error) {
	ctx := r.Context()
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingHeader
	}

	scheme, creds, ok := strings.Cut(header, " ")
	if !ok {
		return nil, ErrInvalidHeader
	}

	be := backend.FromContext(ctx)
	switch strings.ToLower(scheme) {
	case "basic":
		decoded, err := base64.StdEncoding.DecodeString(creds)
		if err != nil {
			return nil, ErrInvalidHeader
		}

		username, password, ok := strings.Cut(string(decoded), ":")
		if !ok {
			return nil, ErrInvalidHeader
		}

		user, err := be.Gate().Authenticate(ctx, username, password)
		if err != nil {
			return nil, ErrInvalidPassword
		}

		return &user, nil
	case "bearer", "token":
		cfg := config.FromContext(ctx)
		if cfg.Auth.JWTSecret == "" {
			return nil, ErrInvalidToken
		}

		repoName := utils.SanitizeRepo(mux.Vars(r)["repo"])
		tm := access.NewTokenManager(cfg.Auth.JWTSecret, cfg.Name)
		user, err := tm.Verify(creds, repoName)
		if err != nil {
			return nil, ErrInvalidToken
		}

		return user, nil
	default:
		return nil, ErrInvalidHeader
	}
}
