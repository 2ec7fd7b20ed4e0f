/*
identity.go - Identity extraction middleware

PURPOSE:
  The engine consumes an Identity supplied by an external identity
  provider; it performs no credential checks itself. At this boundary the
  provider's decision arrives as two trusted headers:

    X-Role:     "patient" or "caregiver"
    X-Username: the authenticated username

  The middleware parses them into an engine.Identity and stashes it in the
  request context. Requests without a usable identity still reach the
  handlers, which answer 401 for operations that require one.

SECURITY NOTE:
  The headers are trusted by design - authentication, sessions, and
  credential storage are explicit non-goals of this engine. Deploy behind
  a gateway that strips and re-issues these headers.

SEE ALSO:
  - handlers.go: Where the identity requirement is enforced per operation
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/vaxsched/reservation-engine/engine"
)

type contextKey int

const identityKey contextKey = iota

// WithIdentity parses the trusted identity headers into the request context.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := engine.Identity{
			Role:     engine.Role(strings.ToLower(strings.TrimSpace(r.Header.Get("X-Role")))),
			Username: strings.TrimSpace(r.Header.Get("X-Username")),
		}
		if id.Valid() {
			r = r.WithContext(context.WithValue(r.Context(), identityKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

// identityFrom returns the identity attached to the request, if any.
func identityFrom(r *http.Request) (engine.Identity, bool) {
	id, ok := r.Context().Value(identityKey).(engine.Identity)
	return id, ok
}
