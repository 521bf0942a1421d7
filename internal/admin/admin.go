// Package admin reads the super-admin flag from the "admins" collection.
package admin

import (
	"context"
)

// FieldIsSuperAdmin is the flag read from admins/{uid}
const FieldIsSuperAdmin = "isSuperAdmin"

// Repository looks up the admin flag for a subject id
type Repository interface {
	// IsSuperAdmin reports whether admins/{uid} exists and its isSuperAdmin
	// field is boolean true. A missing document is not an error.
	IsSuperAdmin(ctx context.Context, uid string) (bool, error)
}

// isSuperAdmin reads the flag from document data. Anything other than a
// boolean true, including an absent field, is false.
func isSuperAdmin(data map[string]any) bool {
	v, ok := data[FieldIsSuperAdmin].(bool)
	return ok && v
}
