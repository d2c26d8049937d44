package auth

import "context"

type subjectKey struct{}

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey{}).(string)
	return sub
}

// SubjectOr returns the subject, or def for anonymous requests.
func SubjectOr(ctx context.Context, def string) string {
	if s := SubjectFromContext(ctx); s != "" {
		return s
	}
	return def
}
