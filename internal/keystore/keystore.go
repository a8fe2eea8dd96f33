// Package keystore keeps signing keys sealed at rest and exposes them as
// plaintext files only for the duration of a signing call.
package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mondonet/guild-operators/internal/log"
)

// SealedExt is the extension of sealed key files.
const SealedExt = ".enc"

// PasswordFunc returns the password for a sealed key file.
type PasswordFunc func(path string) ([]byte, error)

// sealedFile is the on-disk JSON format of a sealed signing key.
type sealedFile struct {
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	Source     string    `json:"source"` // base name of the plaintext key
	Ciphertext []byte    `json:"ciphertext"`
}

// Config holds keystore settings.
type Config struct {
	// ScratchDir receives decrypted keys while a signature is produced.
	ScratchDir string
	Params     Params
	Password   PasswordFunc
}

// Keystore seals signing keys and materializes them on demand.
type Keystore struct {
	scratch  string
	params   Params
	password PasswordFunc
}

// New creates a keystore. The scratch directory is created if missing.
func New(cfg Config) (*Keystore, error) {
	if cfg.ScratchDir == "" {
		return nil, errors.New("keystore: scratch directory required")
	}
	if err := os.MkdirAll(cfg.ScratchDir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore scratch dir: %w", err)
	}
	if cfg.Params == (Params{}) {
		cfg.Params = DefaultParams()
	}
	return &Keystore{
		scratch:  cfg.ScratchDir,
		params:   cfg.Params,
		password: cfg.Password,
	}, nil
}

// IsSealed reports whether path names a sealed key file.
func IsSealed(path string) bool {
	return strings.HasSuffix(path, SealedExt)
}

// Seal encrypts the key file at path into path+".enc" and scrubs the
// plaintext. It returns the sealed file path.
func (ks *Keystore) Seal(path string, password []byte) (string, error) {
	if IsSealed(path) {
		return "", fmt.Errorf("%s is already sealed", path)
	}
	out := path + SealedExt
	if _, err := os.Stat(out); err == nil {
		return "", fmt.Errorf("sealed key %s already exists", out)
	}

	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read key: %w", err)
	}
	defer zero(plaintext)

	ciphertext, err := seal(plaintext, password, ks.params)
	if err != nil {
		return "", fmt.Errorf("seal key: %w", err)
	}
	data, err := json.MarshalIndent(&sealedFile{
		Version:    1,
		CreatedAt:  time.Now().UTC(),
		Source:     filepath.Base(path),
		Ciphertext: ciphertext,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sealed key: %w", err)
	}
	if err := os.WriteFile(out, data, 0600); err != nil {
		return "", fmt.Errorf("write sealed key: %w", err)
	}

	if err := scrub(path); err != nil {
		return out, fmt.Errorf("scrub plaintext key: %w", err)
	}
	log.Keystore.Info().Str("sealed", out).Msg("signing key sealed")
	return out, nil
}

// Open decrypts a sealed key file. The caller must zero the result.
func (ks *Keystore) Open(path string, password []byte) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sealed key: %w", err)
	}
	var sf sealedFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse sealed key %s: %w", path, err)
	}
	if sf.Version != 1 {
		return nil, fmt.Errorf("unsupported sealed key version: %d", sf.Version)
	}
	plaintext, err := open(sf.Ciphertext, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plaintext, nil
}

// WithKeys calls fn with a plaintext path for each key. Plain key files pass
// through unchanged. Sealed files are decrypted into the scratch directory
// and scrubbed once fn returns, whatever its outcome.
func (ks *Keystore) WithKeys(ctx context.Context, keys []string, fn func(paths []string) error) error {
	paths := make([]string, len(keys))
	var temps []string
	defer func() {
		for _, p := range temps {
			if err := scrub(p); err != nil {
				log.Keystore.Warn().Err(err).Str("path", p).Msg("failed to scrub decrypted key")
			}
		}
	}()

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !IsSealed(key) {
			paths[i] = key
			continue
		}
		tmp, err := ks.materialize(key)
		if err != nil {
			return err
		}
		temps = append(temps, tmp)
		paths[i] = tmp
	}
	return fn(paths)
}

func (ks *Keystore) materialize(key string) (string, error) {
	if ks.password == nil {
		return "", fmt.Errorf("%s is sealed and no password source is configured", key)
	}
	password, err := ks.password(key)
	if err != nil {
		return "", fmt.Errorf("read password for %s: %w", key, err)
	}
	defer zero(password)

	plaintext, err := ks.Open(key, password)
	if err != nil {
		return "", err
	}
	defer zero(plaintext)

	f, err := os.CreateTemp(ks.scratch, "signing-*.skey")
	if err != nil {
		return "", fmt.Errorf("create scratch key: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(plaintext); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write scratch key: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close scratch key: %w", err)
	}
	log.Keystore.Debug().Str("key", filepath.Base(key)).Msg("signing key decrypted to scratch")
	return name, nil
}

// scrub overwrites a file with zeros before removing it.
func scrub(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.WriteFile(path, make([]byte, info.Size()), 0600); err != nil {
		return err
	}
	return os.Remove(path)
}
