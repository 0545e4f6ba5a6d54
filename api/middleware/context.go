package middleware

import "context"

// adminIdentity is stored once per request by AdminAuth.
type adminIdentity struct {
	subject string
	role    string
}

type adminKey struct{}

// WithAdmin records the verified admin identity on ctx.
func WithAdmin(ctx context.Context, subject, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, adminKey{}, adminIdentity{subject: subject, role: role})
}

func adminFrom(ctx context.Context) adminIdentity {
	if ctx == nil {
		return adminIdentity{}
	}
	id, _ := ctx.Value(adminKey{}).(adminIdentity)
	return id
}

// AdminSubjectFromContext is empty on routes outside AdminAuth.
func AdminSubjectFromContext(ctx context.Context) string {
	return adminFrom(ctx).subject
}

func RoleFromContext(ctx context.Context) string {
	return adminFrom(ctx).role
}
