package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"loadmatch/internal/domain"
	"loadmatch/internal/policy"
	"loadmatch/internal/repositories"
)

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// ResolveSubject turns the authenticated (user_id, role) pair into a policy subject with
// the current verification flag. Deleted accounts and role mismatches are unauthorized.
func ResolveSubject(ctx context.Context, users repositories.UserRepository, actor domain.Actor) (policy.Subject, error) {
	if actor.UserID <= 0 {
		return policy.Subject{}, domain.UnauthorizedError{Msg: "missing identity"}
	}
	u, err := users.GetByID(ctx, actor.UserID)
	if err != nil {
		if domain.IsNotFound(err) {
			return policy.Subject{}, domain.UnauthorizedError{Msg: "unknown account", Err: err}
		}
		return policy.Subject{}, err
	}
	if u.Deleted() {
		return policy.Subject{}, domain.UnauthorizedError{Msg: "account deleted"}
	}
	if u.Role != actor.Role {
		return policy.Subject{}, domain.UnauthorizedError{Msg: "role claim does not match account"}
	}
	return policy.Subject{UserID: u.ID, Role: u.Role, Verified: u.IsVerified}, nil
}

// newBookingReference returns BK- followed by eight upper-case hex characters.
func newBookingReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BK-" + strings.ToUpper(raw[:8])
}

// concealMissing answers a lookup of a nonexistent booking the same way the gate answers
// a booking the caller cannot see, so foreign ids and missing ids look alike.
func concealMissing(sub policy.Subject, c policy.Capability, err error) error {
	if !domain.IsNotFound(err) {
		return err
	}
	if denied := policy.Authorize(sub, c, policy.Resource{}); denied != nil {
		return denied
	}
	return err
}
