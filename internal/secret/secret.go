// Package secret looks up SSH passwords and key passphrases in the OS
// credential store, so a profile.Profile can reference a secret by name
// instead of carrying one in plaintext.
package secret

import (
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

const serviceName = "sshcorectl"

var (
	ring     keyring.Keyring
	ringOnce sync.Once
	ringErr  error
)

func open() (keyring.Keyring, error) {
	ringOnce.Do(func() {
		ring, ringErr = keyring.Open(keyring.Config{
			ServiceName: serviceName,
			AllowedBackends: []keyring.BackendType{
				keyring.KeychainBackend,
				keyring.SecretServiceBackend,
				keyring.WinCredBackend,
				keyring.PassBackend,
			},
		})
	})
	return ring, ringErr
}

// Set stores a secret under ref (a profile name or an explicit secret_ref).
func Set(ref, value string) error {
	kr, err := open()
	if err != nil {
		return fmt.Errorf("secret: failed to open keyring: %w", err)
	}
	return kr.Set(keyring.Item{Key: ref, Data: []byte(value)})
}

// Get retrieves the secret stored for ref. Returns "", nil if nothing is
// stored for ref.
func Get(ref string) (string, error) {
	kr, err := open()
	if err != nil {
		return "", fmt.Errorf("secret: failed to open keyring: %w", err)
	}

	item, err := kr.Get(ref)
	if err == keyring.ErrKeyNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("secret: failed to retrieve %q: %w", ref, err)
	}
	return string(item.Data), nil
}

// Delete removes the secret stored for ref.
func Delete(ref string) error {
	kr, err := open()
	if err != nil {
		return fmt.Errorf("secret: failed to open keyring: %w", err)
	}
	err = kr.Remove(ref)
	if err == keyring.ErrKeyNotFound {
		return fmt.Errorf("secret: no secret stored for %q", ref)
	}
	return err
}

// Has reports whether a secret is stored for ref.
func Has(ref string) bool {
	kr, err := open()
	if err != nil {
		return false
	}
	_, err = kr.Get(ref)
	return err == nil
}
