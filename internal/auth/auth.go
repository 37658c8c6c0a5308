// Package auth verifies API credentials against configured users.
package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/pkg/errors"

	"propsync/internal/model"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials is what a client presents, e.g. via HTTP basic auth.
type Credentials struct {
	Email    string
	Password string
}

// Provider resolves credentials to a user.
type Provider interface {
	Verify(ctx context.Context, c Credentials) (model.User, error)
}

// Account is a user with its password, as listed in the config file.
type Account struct {
	User     model.User
	Password string
}

// StaticProvider checks credentials against a fixed list of accounts.
type StaticProvider struct {
	accounts map[string]Account
}

// NewStaticProvider indexes accounts by lower-cased email. Accounts without
// an email or a password, or with an unknown role, are rejected.
func NewStaticProvider(accounts []Account) (*StaticProvider, error) {
	m := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		email := strings.ToLower(strings.TrimSpace(a.User.Email))
		if email == "" || a.Password == "" {
			return nil, errors.Errorf("account %q needs an email and a password", a.User.ID)
		}
		if !a.User.Role.Valid() {
			return nil, errors.Errorf("account %q has unknown role %q", email, a.User.Role)
		}
		if _, dup := m[email]; dup {
			return nil, errors.Errorf("duplicate account %q", email)
		}
		if a.User.ID == "" {
			a.User.ID = email
		}
		m[email] = a
	}
	return &StaticProvider{accounts: m}, nil
}

// Enabled reports whether any account is configured.
func (p *StaticProvider) Enabled() bool {
	return p != nil && len(p.accounts) > 0
}

func (p *StaticProvider) Verify(ctx context.Context, c Credentials) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	a, ok := p.accounts[strings.ToLower(strings.TrimSpace(c.Email))]
	if !ok || !secureCompare(c.Password, a.Password) {
		return model.User{}, ErrInvalidCredentials
	}
	return a.User, nil
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
