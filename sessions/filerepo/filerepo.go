// Package filerepo stores the cached session on disk, encrypted with
// XChaCha20-Poly1305 under a key derived from a caller supplied secret.
package filerepo

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "session-cache"

var (
	ErrEmptySecret = errors.New("session secret must not be empty")
	ErrCorrupt     = errors.New("session file is corrupt or was written with another secret")
)

var _ sessions.Repo = (*Repo)(nil)

// Repo is a sessions.Repo backed by a single encrypted file.
type Repo struct {
	path string
	key  []byte
	mu   sync.Mutex
}

// New derives the file key from secret. The file itself is created on first Save.
func New(path, secret string) (*Repo, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key, err := deriveKey([]byte(secret))
	if err != nil {
		return nil, errors.Wrap(err, "[filerepo.New] deriveKey")
	}
	return &Repo{path: path, key: key}, nil
}

func (r *Repo) Load() (*sessions.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	blob, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[filerepo.Load] ReadFile")
	}

	plaintext, err := r.open(blob)
	if err != nil {
		return nil, err
	}

	var session sessions.Session
	if err := json.Unmarshal(plaintext, &session); err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	return &session, nil
}

func (r *Repo) Save(session *sessions.Session) error {
	if session == nil {
		return r.Clear()
	}

	plaintext, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[filerepo.Save] Marshal")
	}
	blob, err := r.seal(plaintext)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return errors.Wrap(err, "[filerepo.Save] MkdirAll")
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return errors.Wrap(err, "[filerepo.Save] WriteFile")
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return errors.Wrap(err, "[filerepo.Save] Rename")
	}
	return nil
}

func (r *Repo) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "[filerepo.Clear] Remove")
	}
	return nil
}

func (r *Repo) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(r.key)
	if err != nil {
		return nil, errors.Wrap(err, "[filerepo.seal] NewX")
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "[filerepo.seal] nonce")
	}
	return aead.Seal(nonce, nonce, plaintext, []byte(keyInfo)), nil
}

func (r *Repo) open(blob []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(r.key)
	if err != nil {
		return nil, errors.Wrap(err, "[filerepo.open] NewX")
	}
	if len(blob) < aead.NonceSize() {
		return nil, ErrCorrupt
	}
	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(keyInfo))
	if err != nil {
		return nil, ErrCorrupt
	}
	return plaintext, nil
}

func deriveKey(secret []byte) ([]byte, error) {
	h := hkdf.New(sha256.New, secret, nil, []byte(keyInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	return key, nil
}
