package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/event-studio/internal/domain"
)

func TestParseUser(t *testing.T) {
	identity, password, err := parseUser("olive@example.com:pa:ss:organizer")
	require.Error(t, err, "role must be the last field")

	identity, password, err = parseUser("olive@example.com:secret123:organizer")
	require.NoError(t, err)
	assert.Equal(t, "secret123", password)
	assert.Equal(t, domain.Identity{FirstName: "Olive", Email: "olive@example.com", Role: domain.RoleOrganizer}, identity)

	for _, entry := range []string{"", "olive@example.com", "olive@example.com::admin", "@example.com:x:admin", "olive@example.com:x:root"} {
		_, _, err := parseUser(entry)
		assert.Error(t, err, entry)
	}
}

func TestDefaultUsersParse(t *testing.T) {
	for _, entry := range defaultUsers {
		_, _, err := parseUser(entry)
		assert.NoError(t, err, entry)
	}
}
