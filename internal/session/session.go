// Package session carries the authenticated user through a request context.
// Authentication happens upstream; this package only transports the result.
package session

import (
	"context"
	"errors"

	"github.com/nebari-dev/tenancy/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// ErrNoSession is returned when the context carries no user.
var ErrNoSession = errors.New("no authenticated user in session")

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the session user, or nil.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// Resolver yields the user the current operation runs as.
type Resolver interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// ContextResolver resolves the user placed in the context by WithUser.
type ContextResolver struct{}

// CurrentUser implements Resolver.
func (ContextResolver) CurrentUser(ctx context.Context) (*models.User, error) {
	if user := UserFromContext(ctx); user != nil {
		return user, nil
	}
	return nil, ErrNoSession
}
