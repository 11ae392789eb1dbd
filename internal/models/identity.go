package models

import "time"

// Metadata holds the mutable profile attributes attached to an identity.
type Metadata struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// MetadataPatch is a partial profile update. Nil fields are left unchanged.
type MetadataPatch struct {
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// Apply merges the patch into m and returns the result.
func (p MetadataPatch) Apply(m Metadata) Metadata {
	if p.FirstName != nil {
		m.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		m.LastName = *p.LastName
	}
	if p.ProfileImage != nil {
		m.ProfileImage = *p.ProfileImage
	}
	return m
}

// IsZero reports whether the patch changes nothing.
func (p MetadataPatch) IsZero() bool {
	return p.FirstName == nil && p.LastName == nil && p.ProfileImage == nil
}

// Identity is the authenticated user's profile record. It is owned by the
// session store and mutated only through the auth gateway's profile update.
type Identity struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Metadata Metadata `json:"metadata"`
}

// Session represents a server-issued proof of an authenticated identity.
// The access token is opaque to the client beyond its expiry; refresh and
// invalidation are signalled by the provider's event stream, never by a
// local timer.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     Identity  `json:"identity"`
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
