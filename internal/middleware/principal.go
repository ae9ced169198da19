package middleware

import (
	"context"
	"net/http"
	"regexp"
)

type principalKey struct{}

// PrincipalHeader names the caller for row filter selection. It is set by a
// trusted gateway in front of the service.
const PrincipalHeader = "X-Semsql-Principal"

var validPrincipal = regexp.MustCompile(`^[A-Za-z0-9_.@-]{1,256}$`)

// WithPrincipal stores the principal name in the context.
func WithPrincipal(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, principalKey{}, name)
}

// PrincipalFromContext extracts the principal name from the context.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(principalKey{}).(string)
	return name, ok
}

// Principal copies a well-formed principal header into the request context.
// Requests without one proceed anonymously; malformed values are ignored.
func Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name := r.Header.Get(PrincipalHeader); validPrincipal.MatchString(name) {
			r = r.WithContext(WithPrincipal(r.Context(), name))
		}
		next.ServeHTTP(w, r)
	})
}
