package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/prohmpiriya/event-studio/internal/domain"
)

// fileRecord is the on-disk layout of the credential file
type fileRecord struct {
	Credential domain.Credential `json:"credential"`
	SavedAt    time.Time         `json:"saved_at"`
}

// FileStore keeps the credential in a 0600 file, optionally sealed to an
// age X25519 identity so the token is unreadable without the key file.
type FileStore struct {
	path     string
	identity *age.X25519Identity
}

// NewFileStore creates a plaintext file store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// NewSealedFileStore creates a file store sealed with the age identity in keyFile
func NewSealedFileStore(path, keyFile string) (*FileStore, error) {
	identity, err := LoadAgeIdentity(keyFile)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, identity: identity}, nil
}

// Path returns the credential file location
func (s *FileStore) Path() string {
	return s.path
}

// Sealed reports whether the file is age-encrypted
func (s *FileStore) Sealed() bool {
	return s.identity != nil
}

// Load reads the credential; a missing file is not an error
func (s *FileStore) Load(ctx context.Context) (domain.Credential, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading credential file: %w", err)
	}

	if s.identity != nil {
		raw, err = s.open(raw)
		if err != nil {
			return "", err
		}
	}

	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", fmt.Errorf("decoding credential file: %w", err)
	}
	return rec.Credential, nil
}

// Save writes the credential atomically with 0600 permissions
func (s *FileStore) Save(ctx context.Context, cred domain.Credential) error {
	raw, err := json.Marshal(fileRecord{Credential: cred, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	if s.identity != nil {
		raw, err = s.seal(raw)
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("creating temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting credential file mode: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing credential file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing credential file: %w", err)
	}
	return nil
}

// Clear deletes the credential file; a missing file is not an error
func (s *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing credential file: %w", err)
	}
	return nil
}

func (s *FileStore) seal(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	armored := armor.NewWriter(&buf)
	w, err := age.Encrypt(armored, s.identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("finalizing armor: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *FileStore) open(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(armor.NewReader(bytes.NewReader(ciphertext)), s.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting credential file: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted credential: %w", err)
	}
	return plaintext, nil
}

// LoadAgeIdentity reads the first X25519 identity from an age key file
func LoadAgeIdentity(keyFile string) (*age.X25519Identity, error) {
	f, err := os.Open(keyFile)
	if err != nil {
		return nil, fmt.Errorf("opening age key file: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parsing age key file: %w", err)
	}
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, fmt.Errorf("age key file %s has no X25519 identity", keyFile)
}

// GenerateAgeKey writes a new X25519 identity to keyFile (0600) and returns
// its public recipient string. An existing file is never overwritten.
func GenerateAgeKey(keyFile string) (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating age keypair: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(keyFile), 0o700); err != nil {
		return "", fmt.Errorf("creating key directory: %w", err)
	}
	f, err := os.OpenFile(keyFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating age key file: %w", err)
	}
	defer f.Close()

	recipient := identity.Recipient().String()
	content := strings.Join([]string{
		"# created: " + time.Now().UTC().Format(time.RFC3339),
		"# public key: " + recipient,
		identity.String(),
		"",
	}, "\n")
	if _, err := f.WriteString(content); err != nil {
		return "", fmt.Errorf("writing age key file: %w", err)
	}
	return recipient, nil
}
