package main

import (
	"context"
	"fmt"

	"go.olrik.dev/sshcore"
	"go.olrik.dev/sshcore/internal/profile"
	"go.olrik.dev/sshcore/internal/secret"
)

// buildSession translates a resolved profile into a connected sshcore
// Session, fetching the profile's password from the OS keyring when its
// auth kind calls for one.
func buildSession(ctx context.Context, p *profile.Profile) (*sshcore.Session, error) {
	b := sshcore.NewBuilder().
		Host(p.Host).
		Port(p.Port).
		Scope(p.Scope)

	if p.User != "" {
		b = b.User(p.User)
	}
	if len(p.Cmd) > 0 {
		b = b.Cmd(p.Cmd)
	}
	if p.InactivityTimeout > 0 {
		b = b.InactivityTimeout(p.InactivityTimeout)
	}

	switch p.AuthKind {
	case profile.AuthKindPassword:
		pw, err := secret.Get(p.SecretRef)
		if err != nil {
			return nil, fmt.Errorf("looking up secret %q: %w", p.SecretRef, err)
		}
		if pw == "" {
			return nil, fmt.Errorf("no secret stored for %q; set one with `sshcorectl secret set %s`", p.SecretRef, p.SecretRef)
		}
		b = b.Password(pw)
	case profile.AuthKindPublicKey, profile.AuthKindPublicKeyCert:
		b = b.Key(p.KeyPath)
		if p.CertPath != "" {
			b = b.Cert(p.CertPath)
		}
	}

	sess, err := b.Build()
	if err != nil {
		return nil, err
	}
	if err := sess.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", p.Host, err)
	}
	return sess, nil
}
