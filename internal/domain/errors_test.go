package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewError(KindUploadFailed, "image %d", 2))

	assert.True(t, errors.Is(err, ErrUploadFailed))
	assert.False(t, errors.Is(err, ErrService))
	assert.Equal(t, KindUploadFailed, KindOf(err))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(KindService, cause, "login request failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOf_ForeignErrorIsService(t *testing.T) {
	assert.Equal(t, KindService, KindOf(errors.New("boom")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestValidationFailed_Fields(t *testing.T) {
	err := ValidationFailed("invalid", map[string]string{"title": "is required", "category": "is invalid"})

	assert.Equal(t, "VALIDATION_ERROR: invalid (category: is invalid; title: is required)", err.Error())
	assert.Equal(t, "is required", FieldErrors(err)["title"])
}

func TestRegistration_Validate(t *testing.T) {
	r := &Registration{Password: "secret1", ConfirmPassword: "secret2"}
	err := r.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	r = &Registration{Password: "secret1", ConfirmPassword: "secret1"}
	require.NoError(t, r.Validate())
	assert.Equal(t, RoleAttendee, r.UserType)
}

func TestCredential_ExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-1",
		"exp":     exp.Unix(),
	})
	signed, err := token.SignedString([]byte("any-secret"))
	require.NoError(t, err)

	got, ok := Credential(signed).ExpiresAt()
	require.True(t, ok)
	assert.True(t, got.Equal(exp))
	assert.False(t, Credential(signed).ExpiredAt(time.Now()))
	assert.True(t, Credential(signed).ExpiredAt(exp.Add(time.Second)))

	_, ok = Credential("opaque-token").ExpiresAt()
	assert.False(t, ok)
	assert.False(t, Credential("opaque-token").ExpiredAt(time.Now()))
}

func TestIsValidCategory(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, IsValidCategory(c), c)
	}
	assert.False(t, IsValidCategory("Music"))
	assert.False(t, IsValidCategory(""))
}

func TestEvent_ResourceID(t *testing.T) {
	assert.Equal(t, "a", (&Event{ID: "a", LegacyID: "b"}).ResourceID())
	assert.Equal(t, "b", (&Event{LegacyID: "b"}).ResourceID())
}
