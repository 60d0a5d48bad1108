// Package certauth issues short-lived session certificates binding a client
// key to an account.
package certauth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/aetherforge/accounts/internal/account"
)

// OIDAccountID marks the certificate extension carrying the account id as an
// 8-byte big-endian integer. The arc sits under a private enterprise number;
// clients and game servers both parse it.
var OIDAccountID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57618, 1, 1}

// DefaultValidity is how long a session certificate stays usable. Clients
// re-request before expiry with an account token.
const DefaultValidity = 30 * 24 * time.Hour

// Authority signs session certificates with an Ed25519 root key.
type Authority struct {
	Certificate *x509.Certificate
	PrivateKey  ed25519.PrivateKey
}

// GenerateAuthority creates a new self-signed root. The root lives long and
// rotates manually; session certificates issued under it are short-lived.
func GenerateAuthority(name string) (*Authority, error) {
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate authority key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Aetherforge"},
			CommonName:   name,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, template, pub, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create authority certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authority certificate: %w", err)
	}

	return &Authority{Certificate: cert, PrivateKey: key}, nil
}

// SignSession issues a certificate over the client's public key carrying the
// account id extension. The client holds the matching private key; the
// server never sees it.
func (a *Authority) SignSession(id account.ID, clientPub ed25519.PublicKey, validity time.Duration) ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("cannot sign session for invalid account id")
	}
	if len(clientPub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("client public key must be %d bytes, got %d",
			ed25519.PublicKeySize, len(clientPub))
	}
	if validity <= 0 {
		validity = DefaultValidity
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial: %w", err)
	}

	idBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idBytes, uint64(id))

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Aetherforge"},
			CommonName:   fmt.Sprintf("session-%d", uint64(id)),
		},
		NotBefore:   now,
		NotAfter:    now.Add(validity),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		ExtraExtensions: []pkix.Extension{{
			Id:    OIDAccountID,
			Value: idBytes,
		}},
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, a.Certificate, clientPub, a.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create session certificate: %w", err)
	}
	return certBytes, nil
}

// AccountIDFromCertificate extracts the account id extension from a parsed
// certificate. It does not verify the signature; use VerifySession for that.
func AccountIDFromCertificate(cert *x509.Certificate) (account.ID, error) {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(OIDAccountID) {
			if len(ext.Value) != 8 {
				return account.InvalidID, fmt.Errorf("account id extension must be 8 bytes, got %d", len(ext.Value))
			}
			id := account.ID(binary.BigEndian.Uint64(ext.Value))
			if !id.Valid() {
				return account.InvalidID, fmt.Errorf("account id extension holds the invalid sentinel")
			}
			return id, nil
		}
	}
	return account.InvalidID, fmt.Errorf("certificate carries no account id extension")
}

// VerifySession checks a DER session certificate against the authority and
// returns the bound account id.
func (a *Authority) VerifySession(der []byte, now time.Time) (account.ID, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return account.InvalidID, fmt.Errorf("failed to parse session certificate: %w", err)
	}

	roots := x509.NewCertPool()
	roots.AddCert(a.Certificate)
	_, err = cert.Verify(x509.VerifyOptions{
		Roots:       roots,
		CurrentTime: now,
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	if err != nil {
		return account.InvalidID, fmt.Errorf("session certificate verification failed: %w", err)
	}

	return AccountIDFromCertificate(cert)
}
