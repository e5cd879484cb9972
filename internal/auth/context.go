package auth

import "context"

type contextKey int

const (
	subjectContextKey contextKey = iota
)

// WithSubject returns a context carrying the authenticated subject identifier.
func WithSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectContextKey, subjectID)
}

// SubjectFromContext extracts the authenticated subject identifier.
// Returns an empty string for unauthenticated requests.
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectContextKey).(string)
	return subject
}
