package certauth

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

const (
	certFile = "signing-ca.crt"
	keyFile  = "signing-ca.key"
)

// SaveAuthority writes the root certificate and key to the keys directory as
// PEM files. The key file is created mode 0600.
func SaveAuthority(dir string, a *Authority) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create keys directory: %w", err)
	}

	certOut, err := os.OpenFile(filepath.Clean(filepath.Join(dir, certFile)),
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create cert file: %w", err)
	}
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: a.Certificate.Raw}); err != nil {
		_ = certOut.Close()
		return fmt.Errorf("failed to encode certificate: %w", err)
	}
	if err := certOut.Close(); err != nil {
		return fmt.Errorf("failed to close cert file: %w", err)
	}

	keyBytes, err := x509.MarshalPKCS8PrivateKey(a.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}
	keyOut, err := os.OpenFile(filepath.Clean(filepath.Join(dir, keyFile)),
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	if err := pem.Encode(keyOut, &pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes}); err != nil {
		_ = keyOut.Close()
		return fmt.Errorf("failed to encode key: %w", err)
	}
	if err := keyOut.Close(); err != nil {
		return fmt.Errorf("failed to close key file: %w", err)
	}

	return nil
}

// EnsureAuthority loads the signing authority from dir, generating and
// saving a fresh one when no key material exists yet. If either file is
// present the pair must load cleanly; a half-written pair is an error, not
// a trigger for silent regeneration.
func EnsureAuthority(dir, name string) (*Authority, error) {
	certPresent := fileExists(filepath.Join(dir, certFile))
	keyPresent := fileExists(filepath.Join(dir, keyFile))
	if certPresent || keyPresent {
		a, err := LoadAuthority(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing authority: %w", err)
		}
		return a, nil
	}

	a, err := GenerateAuthority(name)
	if err != nil {
		return nil, err
	}
	if err := SaveAuthority(dir, a); err != nil {
		return nil, err
	}
	return a, nil
}

// fileExists treats permission errors as "exists" so an unreadable key file
// is never silently overwritten.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !os.IsNotExist(err)
}

// LoadAuthority reads a previously saved root from the keys directory.
func LoadAuthority(dir string) (*Authority, error) {
	certPEM, err := os.ReadFile(filepath.Clean(filepath.Join(dir, certFile)))
	if err != nil {
		return nil, fmt.Errorf("failed to read authority certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(filepath.Clean(filepath.Join(dir, keyFile)))
	if err != nil {
		return nil, fmt.Errorf("failed to read authority key: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode authority certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authority certificate: %w", err)
	}

	block, _ = pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode authority key PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authority key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("authority key is not an Ed25519 key")
	}

	return &Authority{Certificate: cert, PrivateKey: key}, nil
}
