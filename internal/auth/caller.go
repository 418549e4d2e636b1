package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	PermissionAllFunctions     = "ALL_FUNCTIONS"
	PermissionAllFunctionsRead = "ALL_FUNCTIONS_READ"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// ForbiddenError names the permission the caller was missing.
type ForbiddenError struct {
	Username   string
	Permission string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("user %q lacks permission %s", e.Username, e.Permission)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// Caller is the authenticated user on whose behalf an operation runs.
// Services receive it explicitly; it is never read from a global.
type Caller struct {
	UserID      int64
	Username    string
	Permissions []string
}

// Can reports whether the caller holds permission, directly or through
// ALL_FUNCTIONS / ALL_FUNCTIONS_READ.
func (c Caller) Can(permission string) bool {
	for _, p := range c.Permissions {
		switch {
		case p == permission, p == PermissionAllFunctions:
			return true
		case p == PermissionAllFunctionsRead && strings.HasPrefix(permission, "READ_"):
			return true
		}
	}
	return false
}

func (c Caller) Require(permission string) error {
	if c.UserID == 0 {
		return ErrUnauthenticated
	}
	if !c.Can(permission) {
		return &ForbiddenError{Username: c.Username, Permission: permission}
	}
	return nil
}

type contextKey string

const callerKey contextKey = "caller"

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext returns the caller stored by the middleware.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}

// ParsePermissions splits a stored permission list and normalises each entry.
func ParsePermissions(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
