// Package access decides who may read and write repositories.
package access

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
)

// Gate authenticates users and maps them to repository access levels.
type Gate interface {
	// Authenticate verifies a username and password. It fails with
	// proto.ErrUnauthorized for unknown users or wrong passwords.
	Authenticate(ctx context.Context, username, password string) (proto.User, error)

	// AccessLevel returns the access level the user has on the repository.
	// A nil user is an anonymous client.
	AccessLevel(ctx context.Context, user *proto.User, repo string) proto.AccessLevel
}

// StaticGate is a Gate backed by the server configuration: a fixed list of
// credentials, an anonymous access level and glob patterns marking private
// repositories.
type StaticGate struct {
	anon    proto.AccessLevel
	creds   map[string]string
	private []glob.Glob
}

var _ Gate = (*StaticGate)(nil)

// NewStaticGate builds a gate from the auth configuration.
func NewStaticGate(cfg config.AuthConfig) (*StaticGate, error) {
	anon, err := parseAccessLevel(cfg.AnonAccess)
	if err != nil {
		return nil, err
	}

	creds := make(map[string]string, len(cfg.Users))
	for _, u := range cfg.Users {
		name, pass, ok := strings.Cut(u, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("access: malformed user entry %q, want username:password", u)
		}
		creds[name] = pass
	}

	private := make([]glob.Glob, 0, len(cfg.Private))
	for _, p := range cfg.Private {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("access: bad private pattern %q: %w", p, err)
		}
		private = append(private, g)
	}

	return &StaticGate{
		anon:    anon,
		creds:   creds,
		private: private,
	}, nil
}

// Authenticate implements Gate.
func (g *StaticGate) Authenticate(_ context.Context, username, password string) (proto.User, error) {
	want, ok := g.creds[username]
	// Compare even for unknown users so both paths cost the same.
	if !ok {
		want = ""
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(password)) != 1 || !ok {
		return proto.User{}, proto.ErrUnauthorized
	}

	return proto.User{Username: username}, nil
}

// AccessLevel implements Gate. Authenticated users get read-write access;
// anonymous clients get the configured anonymous level, or no access on
// private repositories.
func (g *StaticGate) AccessLevel(_ context.Context, user *proto.User, repo string) proto.AccessLevel {
	if user != nil {
		if user.Admin {
			return proto.AdminAccess
		}
		return proto.ReadWriteAccess
	}

	for _, p := range g.private {
		if p.Match(repo) {
			return proto.NoAccess
		}
	}

	return g.anon
}

func parseAccessLevel(s string) (proto.AccessLevel, error) {
	switch s {
	case "", "no-access":
		return proto.NoAccess, nil
	case "read-only":
		return proto.ReadOnlyAccess, nil
	case "read-write":
		return proto.ReadWriteAccess, nil
	default:
		return proto.NoAccess, fmt.Errorf("access: invalid anonymous access level %q", s)
	}
}
