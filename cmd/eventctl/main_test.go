package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/event-studio/internal/domain"
	"github.com/prohmpiriya/event-studio/internal/session"
	"github.com/prohmpiriya/event-studio/internal/testserver"
)

const draftYAML = `title: Launch Party
description: Product launch
category: technology
date: "2030-05-01"
time: "19:30"
location:
  address: 1 Main St
  city: Springfield
  state: IL
  country: US
ticketTiers:
  - name: GA
    price: 20
    quantity: 100
`

var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func setupCLI(t *testing.T) (*testserver.Server, string) {
	t.Helper()
	srv := testserver.NewServer(testserver.Options{})
	t.Cleanup(srv.Close)
	srv.AddUser(domain.Identity{FirstName: "Olive", LastName: "Organizer", Email: "olive@example.com", Role: domain.RoleOrganizer}, "secret123")

	dir := t.TempDir()
	t.Setenv("GATEWAY_BASE_URL", srv.URL)
	t.Setenv("CREDENTIAL_BACKEND", "file")
	t.Setenv("CREDENTIAL_FILE", filepath.Join(dir, "credential"))
	t.Setenv("CREDENTIAL_AGE_KEY_FILE", "")
	t.Setenv("JOURNAL_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv(passwordEnv, "")
	return srv, dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(args, &out)
	return out.String(), err
}

func TestCLI_SessionAcrossInvocations(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "login", "--email", "olive@example.com", "--password", "secret123")
	require.NoError(t, err)
	assert.Contains(t, out, "role=organizer")

	out, err = runCLI(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Olive Organizer <olive@example.com>")

	out, err = runCLI(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "signed out")

	_, err = runCLI(t, "whoami")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestCLI_LoginRejected(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "login", "--email", "olive@example.com", "--password", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestCLI_CreateFromDraft(t *testing.T) {
	srv, dir := setupCLI(t)

	draftPath := filepath.Join(dir, "launch.yaml")
	require.NoError(t, os.WriteFile(draftPath, []byte(draftYAML), 0o600))
	imagePath := filepath.Join(dir, "cover.png")
	require.NoError(t, os.WriteFile(imagePath, pngPixel, 0o600))

	_, err := runCLI(t, "login", "-e", "olive@example.com", "-p", "secret123")
	require.NoError(t, err)

	out, err := runCLI(t, "create", "--draft", draftPath, "--media", imagePath)
	require.NoError(t, err)
	assert.Contains(t, out, "created event")

	events := srv.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Launch Party", events[0].Title)
	assert.Len(t, events[0].Images, 1)

	uploads := srv.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "cover.png", uploads[0].Filename)

	out, err = runCLI(t, "events")
	require.NoError(t, err)
	assert.Contains(t, out, "Launch Party")

	out, err = runCLI(t, "event", events[0].ResourceID())
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Launch Party"`)
}

func TestCLI_CreateRequiresSignIn(t *testing.T) {
	_, dir := setupCLI(t)
	draftPath := filepath.Join(dir, "launch.yaml")
	require.NoError(t, os.WriteFile(draftPath, []byte(draftYAML), 0o600))

	_, err := runCLI(t, "create", "--draft", draftPath)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestCLI_Keygen(t *testing.T) {
	_, dir := setupCLI(t)
	keyFile := filepath.Join(dir, "keys", "credential.age")

	out, err := runCLI(t, "keygen", "--output", keyFile)
	require.NoError(t, err)
	assert.Contains(t, out, "public key: age1")

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = runCLI(t, "keygen", "--output", keyFile)
	assert.Error(t, err, "existing key is never overwritten")
}

func TestCLI_UnknownCommand(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "frobnicate")
	assert.ErrorContains(t, err, "unknown command")
}
