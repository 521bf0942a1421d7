// Package player stores the per-user profile documents in the "players"
// collection.
package player

// Profile is the application-level record of an authenticated user,
// stored at players/{uid}. Empty optional strings are not persisted.
type Profile struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture,omitempty"`
	IsSuperAdmin  bool   `json:"isSuperAdmin"`
}

// Firestore field names
const (
	FieldUID           = "uid"
	FieldEmail         = "email"
	FieldName          = "name"
	FieldEmailVerified = "email_verified"
	FieldPicture       = "picture"
	FieldIsSuperAdmin  = "isSuperAdmin"
)

// ToMap converts the profile to the document stored in Firestore.
// Empty email, name and picture are left out of the document.
func (p Profile) ToMap() map[string]any {
	data := map[string]any{
		FieldUID:           p.UID,
		FieldEmailVerified: p.EmailVerified,
		FieldIsSuperAdmin:  p.IsSuperAdmin,
	}
	if p.Email != "" {
		data[FieldEmail] = p.Email
	}
	if p.Name != "" {
		data[FieldName] = p.Name
	}
	if p.Picture != "" {
		data[FieldPicture] = p.Picture
	}
	return data
}

// FromMap builds a profile from stored document data.
// Fields with unexpected types are treated as absent. Fields outside the
// profile schema are dropped.
func FromMap(data map[string]any) Profile {
	var p Profile
	if uid, ok := data[FieldUID].(string); ok {
		p.UID = uid
	}
	if email, ok := data[FieldEmail].(string); ok {
		p.Email = email
	}
	if name, ok := data[FieldName].(string); ok {
		p.Name = name
	}
	if verified, ok := data[FieldEmailVerified].(bool); ok {
		p.EmailVerified = verified
	}
	if picture, ok := data[FieldPicture].(string); ok {
		p.Picture = picture
	}
	if admin, ok := data[FieldIsSuperAdmin].(bool); ok {
		p.IsSuperAdmin = admin
	}
	return p
}
