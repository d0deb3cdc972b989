package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is assigned by the server and never changed by the client
type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// IsValid returns true if the role is one the service assigns
func (r Role) IsValid() bool {
	switch r {
	case RoleAttendee, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

// Identity represents the authenticated user
type Identity struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// FullName returns the display name of the identity
func (i *Identity) FullName() string {
	switch {
	case i.FirstName == "":
		return i.LastName
	case i.LastName == "":
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// Clone returns a copy that shares no memory with i
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Credential is the opaque bearer token proving an authenticated session
type Credential string

// IsZero reports whether no credential is held
func (c Credential) IsZero() bool {
	return c == ""
}

// ExpiresAt returns the expiry carried by a JWT credential.
// The signature is not verified; the server remains the authority.
// ok is false for opaque tokens or tokens without an exp claim.
func (c Credential) ExpiresAt() (expiresAt time.Time, ok bool) {
	if c.IsZero() {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(string(c), claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// ExpiredAt reports whether the credential is known to be expired at now
func (c Credential) ExpiredAt(now time.Time) bool {
	exp, ok := c.ExpiresAt()
	return ok && !now.Before(exp)
}

// AuthResult is returned by the login and signup endpoints
type AuthResult struct {
	Credential Credential `json:"token"`
	Identity   *Identity  `json:"user"`
}

// Registration holds signup fields
type Registration struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	PhoneNumber     string `json:"phoneNumber,omitempty"`
	UserType        Role   `json:"userType"`
}

// Validate checks the fields the client can verify without the service
func (r *Registration) Validate() error {
	if r.ConfirmPassword != "" && r.Password != r.ConfirmPassword {
		return ValidationFailed("passwords do not match", map[string]string{
			"confirmPassword": "must match password",
		})
	}
	if r.UserType == "" {
		r.UserType = RoleAttendee
	}
	return nil
}

// ProfileUpdate holds the editable profile fields
type ProfileUpdate struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// PasswordChange is the body of the change-password endpoint
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
