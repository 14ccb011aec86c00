package credential

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/felixgeelhaar/reimburse/internal/errors"
)

const (
	pbkdf2Iterations = 100000
	keyLength        = 32
	saltLength       = 16
)

// record is the on-disk representation of the stored credential.
type record struct {
	// Salt is the PBKDF2 salt for this file (base64)
	Salt string `json:"salt"`

	// Value is the AES-GCM encrypted bearer token (base64, nonce-prefixed)
	Value string `json:"value"`

	// UpdatedAt is when the credential was last written
	UpdatedAt time.Time `json:"updatedAt"`

	// ExpiresAt is the token's own expiry when it is a JWT (informational)
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// FileStore keeps the credential in an encrypted JSON file with 0600 permissions.
type FileStore struct {
	mu         sync.Mutex
	path       string
	passphrase string

	// derived key cache for the salt currently on disk
	salt []byte
	key  []byte
}

// NewFileStore creates a store backed by path. The file is created on first Save.
func NewFileStore(path, passphrase string) *FileStore {
	return &FileStore{
		path:       path,
		passphrase: passphrase,
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load decrypts and returns the stored credential. A missing, unparsable or
// undecryptable file loads as "".
func (s *FileStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(errors.ErrCodeStoreRead, fmt.Sprintf("failed to read credential file: %s", s.path), err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", nil
	}

	salt, err := base64.StdEncoding.DecodeString(rec.Salt)
	if err != nil || len(salt) == 0 {
		return "", nil
	}

	token, err := s.decrypt(s.deriveKey(salt), rec.Value)
	if err != nil {
		return "", nil
	}

	return token, nil
}

// Save encrypts token and writes it atomically.
func (s *FileStore) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.salt == nil {
		salt := make([]byte, saltLength)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return errors.Wrap(errors.ErrCodeStoreWrite, "failed to generate salt", err)
		}
		s.salt = salt
		s.key = nil
	}
	key := s.deriveKey(s.salt)

	value, err := s.encrypt(key, token)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to encrypt credential", err)
	}

	rec := record{
		Salt:      base64.StdEncoding.EncodeToString(s.salt),
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	if claims, ok := Inspect(token); ok && !claims.ExpiresAt.IsZero() {
		exp := claims.ExpiresAt
		rec.ExpiresAt = &exp
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to marshal credential", err)
	}

	return s.writeFile(data)
}

// Clear deletes the credential file.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeStoreWrite, fmt.Sprintf("failed to remove credential file: %s", s.path), err)
	}
	s.salt = nil
	s.key = nil
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

// deriveKey returns the PBKDF2 key for salt, reusing the cached one when possible.
func (s *FileStore) deriveKey(salt []byte) []byte {
	if s.key != nil && string(s.salt) == string(salt) {
		return s.key
	}
	s.salt = append([]byte(nil), salt...)
	s.key = pbkdf2.Key([]byte(s.passphrase), salt, pbkdf2Iterations, keyLength, sha256.New)
	return s.key
}

func (s *FileStore) writeFile(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, fmt.Sprintf("failed to create directory: %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to set file permissions", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to write credential file", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to write credential file", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to replace credential file", err)
	}
	return nil
}

// encrypt encrypts a value using AES-GCM
func (s *FileStore) encrypt(key []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a value using AES-GCM
func (s *FileStore) decrypt(key []byte, ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
