package apksign

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	gop12 "software.sslmate.com/src/go-pkcs12"
)

// ErrUnsupportedKey is returned for keys other than RSA and ECDSA.
var ErrUnsupportedKey = errors.New("unsupported signing key")

// Identity is a signing key and its certificate.
type Identity struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.Signer
	Chain       []*x509.Certificate
}

// LoadIdentity loads a signing identity from PKCS#12 or PEM data.
// PEM input must hold the private key and a certificate for it.
func LoadIdentity(data []byte, password string) (*Identity, error) {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN")) {
		return loadPEMIdentity(data)
	}

	privateKey, cert, caCerts, err := gop12.DecodeChain(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode P12: %w", err)
	}

	signer, err := asSigner(privateKey)
	if err != nil {
		return nil, err
	}

	return &Identity{
		Certificate: cert,
		PrivateKey:  signer,
		Chain:       append([]*x509.Certificate{cert}, caCerts...),
	}, nil
}

// LoadIdentityFile reads path and calls LoadIdentity.
func LoadIdentityFile(path, password string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	return LoadIdentity(data, password)
}

func loadPEMIdentity(pemData []byte) (*Identity, error) {
	var (
		privateKey crypto.PrivateKey
		certs      []*x509.Certificate
	)

	for rest := pemData; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		var err error
		switch block.Type {
		case "RSA PRIVATE KEY":
			privateKey, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		case "PRIVATE KEY":
			privateKey, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		case "EC PRIVATE KEY":
			privateKey, err = x509.ParseECPrivateKey(block.Bytes)
		case "CERTIFICATE":
			var cert *x509.Certificate
			cert, err = x509.ParseCertificate(block.Bytes)
			certs = append(certs, cert)
		default:
			return nil, fmt.Errorf("unsupported PEM type: %s", block.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", block.Type, err)
		}
	}

	if privateKey == nil {
		return nil, errors.New("no private key in PEM data")
	}
	signer, err := asSigner(privateKey)
	if err != nil {
		return nil, err
	}

	for i, cert := range certs {
		if keyMatchesCert(signer, cert) {
			chain := append([]*x509.Certificate{cert}, certs[:i]...)
			chain = append(chain, certs[i+1:]...)

			return &Identity{Certificate: cert, PrivateKey: signer, Chain: chain}, nil
		}
	}

	return nil, errors.New("no certificate in PEM data matches the private key")
}

func asSigner(key any) (crypto.Signer, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
}

// keyMatchesCert checks if a private key matches a certificate's public key
func keyMatchesCert(key crypto.Signer, cert *x509.Certificate) bool {
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })

	return ok && pub.Equal(cert.PublicKey)
}

// GenerateIdentity creates a self-signed RSA identity, the kind used for
// debug builds.
func GenerateIdentity(commonName string, validity time.Duration) (*Identity, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"WebToApp"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return &Identity{Certificate: cert, PrivateKey: key, Chain: []*x509.Certificate{cert}}, nil
}

// PKCS12 encodes the identity as a password-protected PKCS#12 keystore.
func (id *Identity) PKCS12(password string) ([]byte, error) {
	var ca []*x509.Certificate
	if len(id.Chain) > 1 {
		ca = id.Chain[1:]
	}

	data, err := gop12.Modern.Encode(id.PrivateKey, id.Certificate, ca, password)
	if err != nil {
		return nil, fmt.Errorf("failed to encode P12: %w", err)
	}

	return data, nil
}
