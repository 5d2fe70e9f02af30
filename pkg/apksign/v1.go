package apksign

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"go.mozilla.org/pkcs7"
)

const (
	manifestName  = "META-INF/MANIFEST.MF"
	signatureName = "META-INF/CERT.SF"
	createdBy     = "1.0 (Android)"
	// maxLineLength is the JAR manifest line limit in bytes, excluding CRLF.
	maxLineLength = 72
)

// isSignatureFile reports whether name is a JAR signature artifact.
func isSignatureFile(name string) bool {
	if !strings.HasPrefix(name, "META-INF/") || strings.Count(name, "/") != 1 {
		return false
	}
	if name == manifestName {
		return true
	}

	switch strings.ToUpper(path.Ext(name)) {
	case ".SF", ".RSA", ".DSA", ".EC":
		return true
	}

	return false
}

// blockName returns the signature block entry name for the identity's key.
func blockName(id *Identity) string {
	if _, ok := id.PrivateKey.(*ecdsa.PrivateKey); ok {
		return "META-INF/CERT.EC"
	}

	return "META-INF/CERT.RSA"
}

type digestedEntry struct {
	name   string
	digest []byte
}

// v1Files holds the generated JAR signature entries.
type v1Files struct {
	manifest  []byte
	signature []byte
	block     []byte
	blockName string
}

func buildV1(entries []digestedEntry, id *Identity) (*v1Files, error) {
	var mf bytes.Buffer
	writeAttr(&mf, "Manifest-Version", "1.0")
	writeAttr(&mf, "Created-By", createdBy)
	mf.WriteString("\r\n")

	sections := make([][]byte, len(entries))
	for i, e := range entries {
		var sec bytes.Buffer
		writeAttr(&sec, "Name", e.name)
		writeAttr(&sec, "SHA-256-Digest", base64.StdEncoding.EncodeToString(e.digest))
		sec.WriteString("\r\n")
		sections[i] = sec.Bytes()
		mf.Write(sections[i])
	}

	var sf bytes.Buffer
	writeAttr(&sf, "Signature-Version", "1.0")
	writeAttr(&sf, "Created-By", createdBy)
	writeAttr(&sf, "SHA-256-Digest-Manifest", b64sha256(mf.Bytes()))
	writeAttr(&sf, "X-Android-APK-Signed", "2")
	sf.WriteString("\r\n")
	for i, e := range entries {
		writeAttr(&sf, "Name", e.name)
		writeAttr(&sf, "SHA-256-Digest", b64sha256(sections[i]))
		sf.WriteString("\r\n")
	}

	block, err := signDetached(sf.Bytes(), id)
	if err != nil {
		return nil, err
	}

	return &v1Files{
		manifest:  mf.Bytes(),
		signature: sf.Bytes(),
		block:     block,
		blockName: blockName(id),
	}, nil
}

// signDetached creates a detached PKCS#7 SignedData over data.
func signDetached(data []byte, id *Identity) ([]byte, error) {
	signedData, err := pkcs7.NewSignedData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to create signed data: %w", err)
	}
	signedData.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)

	if err := signedData.AddSigner(id.Certificate, id.PrivateKey, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("failed to add signer: %w", err)
	}
	for _, c := range id.Chain {
		if !c.Equal(id.Certificate) {
			signedData.AddCertificate(c)
		}
	}
	signedData.Detach()

	return signedData.Finish()
}

// writeAttr writes "key: value" wrapped at maxLineLength with continuation
// lines starting with a space.
func writeAttr(buf *bytes.Buffer, key, value string) {
	line := []byte(key + ": " + value)
	limit := maxLineLength
	for len(line) > limit {
		buf.Write(line[:limit])
		buf.WriteString("\r\n ")
		line = line[limit:]
		limit = maxLineLength - 1
	}
	buf.Write(line)
	buf.WriteString("\r\n")
}

func b64sha256(b []byte) string {
	sum := sha256.Sum256(b)

	return base64.StdEncoding.EncodeToString(sum[:])
}
