// Package profile declares named SSH connection profiles in HCL, the way
// an ssh_config Host block does, but loaded into sshcore's own Builder
// instead of shelled out to the system ssh client.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Profile is one named host profile: enough to populate an sshcore.Builder.
type Profile struct {
	Name              string
	Host              string
	User              string
	Port              uint16
	Scope             string
	Cmd               []string
	InactivityTimeout time.Duration

	// Auth selects which builder setter to call. At most one of Password,
	// KeyPath is meaningful per AuthKind; KeyPath/CertPath are also used
	// for AuthKindPublicKeyCert.
	AuthKind AuthKind
	KeyPath  string
	CertPath string
	// SecretRef, if set, names a key to look up in the OS keyring
	// (internal/secret) instead of a literal Password field — profiles are
	// meant to be checked into a dotfiles repo, so literal passwords have
	// no home here.
	SecretRef string
}

// AuthKind mirrors sshcore's own AuthKind values without importing the
// sshcore package (profile is a leaf dependency consumed by cmd/sshcorectl
// alongside sshcore, not by sshcore itself).
type AuthKind string

const (
	AuthKindNone          AuthKind = "none"
	AuthKindPassword      AuthKind = "password"
	AuthKindPublicKey     AuthKind = "publickey"
	AuthKindPublicKeyCert AuthKind = "publickey-cert"
)

// Store holds every profile loaded from a config directory, keyed by name.
type Store struct {
	Profiles map[string]*Profile
}

type hclRoot struct {
	Profiles []hclProfile `hcl:"profile,block"`
}

type hclProfile struct {
	Name              string   `hcl:"name,label"`
	Host              string   `hcl:"host"`
	User              string   `hcl:"user,optional"`
	Port              int      `hcl:"port,optional"`
	Scope             string   `hcl:"scope,optional"`
	Cmd               []string `hcl:"cmd,optional"`
	InactivityTimeout string   `hcl:"inactivity_timeout,optional"`
	Auth              *hclAuth `hcl:"auth,block"`
}

type hclAuth struct {
	Password  *bool  `hcl:"password,optional"`
	SecretRef string `hcl:"secret_ref,optional"`
	KeyPath   string `hcl:"key,optional"`
	CertPath  string `hcl:"cert,optional"`
}

func parseHCLFile(filename string) (*hclRoot, error) {
	var root hclRoot
	if err := hclsimple.DecodeFile(filename, nil, &root); err != nil {
		return nil, fmt.Errorf("profile: failed to parse %s: %w", filename, err)
	}
	return &root, nil
}

func convert(root *hclRoot) (*Store, error) {
	store := &Store{Profiles: make(map[string]*Profile, len(root.Profiles))}

	for _, p := range root.Profiles {
		if _, exists := store.Profiles[p.Name]; exists {
			return nil, fmt.Errorf("profile: duplicate profile %q", p.Name)
		}

		prof := &Profile{
			Name:  p.Name,
			Host:  p.Host,
			User:  p.User,
			Port:  uint16(p.Port),
			Scope: p.Scope,
			Cmd:   p.Cmd,
		}

		if p.InactivityTimeout != "" {
			d, err := time.ParseDuration(p.InactivityTimeout)
			if err != nil {
				return nil, fmt.Errorf("profile %q: invalid inactivity_timeout %q: %w", p.Name, p.InactivityTimeout, err)
			}
			prof.InactivityTimeout = d
		}

		switch {
		case p.Auth == nil:
			prof.AuthKind = AuthKindNone
		case p.Auth.KeyPath != "":
			prof.KeyPath = p.Auth.KeyPath
			prof.CertPath = p.Auth.CertPath
			if p.Auth.CertPath != "" {
				prof.AuthKind = AuthKindPublicKeyCert
			} else {
				prof.AuthKind = AuthKindPublicKey
			}
		case p.Auth.Password != nil && *p.Auth.Password:
			prof.AuthKind = AuthKindPassword
			prof.SecretRef = p.Auth.SecretRef
			if prof.SecretRef == "" {
				prof.SecretRef = p.Name
			}
		default:
			prof.AuthKind = AuthKindNone
		}

		store.Profiles[p.Name] = prof
	}

	return store, nil
}

// Load reads one HCL profile file.
func Load(filename string) (*Store, error) {
	root, err := parseHCLFile(filename)
	if err != nil {
		return nil, err
	}
	return convert(root)
}

// LoadDir reads every *.hcl file in dir in alphabetical order, merging
// their profile blocks. A duplicate profile name across files is an error,
// mirroring the single-namespace HCL config directory convention this is
// adapted from.
func LoadDir(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Store{Profiles: map[string]*Profile{}}, nil
		}
		return nil, fmt.Errorf("profile: reading %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".hcl" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	merged := &hclRoot{}
	for _, name := range names {
		frag, err := parseHCLFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		merged.Profiles = append(merged.Profiles, frag.Profiles...)
	}

	return convert(merged)
}

// Get looks up a profile by name.
func (s *Store) Get(name string) (*Profile, bool) {
	p, ok := s.Profiles[name]
	return p, ok
}
