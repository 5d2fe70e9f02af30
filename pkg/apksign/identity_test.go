package apksign

import (
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPKCS12RoundTrip(t *testing.T) {
	id := testIdentity(t)

	data, err := id.PKCS12("secret")
	require.NoError(t, err)

	loaded, err := LoadIdentity(data, "secret")
	require.NoError(t, err)
	require.True(t, loaded.Certificate.Equal(id.Certificate))
	require.True(t, keyMatchesCert(loaded.PrivateKey, id.Certificate))

	_, err = LoadIdentity(data, "wrong")
	require.Error(t, err)
}

func TestLoadPEMIdentity(t *testing.T) {
	id := testIdentity(t)

	keyDER, err := x509.MarshalPKCS8PrivateKey(id.PrivateKey)
	require.NoError(t, err)
	data := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.Certificate.Raw})...)

	loaded, err := LoadIdentity(data, "")
	require.NoError(t, err)
	require.True(t, loaded.Certificate.Equal(id.Certificate))

	other, err := GenerateIdentity("Other", time.Hour)
	require.NoError(t, err)
	mismatched := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	mismatched = append(mismatched, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: other.Certificate.Raw})...)
	_, err = LoadIdentity(mismatched, "")
	require.Error(t, err)

	_, err = LoadIdentity(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: []byte{1}}), "")
	require.Error(t, err)
}

func TestGenerateIdentity(t *testing.T) {
	id := testIdentity(t)
	require.Equal(t, "Test Signer", id.Certificate.Subject.CommonName)
	require.True(t, id.Certificate.NotBefore.Before(time.Now()))
	require.True(t, keyMatchesCert(id.PrivateKey, id.Certificate))
}
