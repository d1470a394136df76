// Package service implements the comment moderation and engagement engine.
package service

import (
	"context"
	"time"

	"modhub/internal/models"
)

// Clock supplies the time against which throttle windows and timeouts are
// evaluated. Production wires the database clock so every instance agrees.
type Clock interface {
	Now(ctx context.Context) (time.Time, error)
}

// Actor is the caller of a mutating operation as resolved by the auth layer.
// IP and UserAgent only ever reach the audit sink and security logs.
type Actor struct {
	UserID    uint
	Role      string
	IP        string
	UserAgent string
}

// IsPrivileged reports whether the actor holds a moderation role.
func (a Actor) IsPrivileged() bool {
	return models.IsPrivilegedRole(a.Role)
}
