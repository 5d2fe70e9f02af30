package apksign

import (
	"archive/zip"
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"go.mozilla.org/pkcs7"
)

// Info describes the signatures found on an archive.
type Info struct {
	SignatureBlock string
	Certificates   []*x509.Certificate
	V1Verified     bool
	V1Error        error
	V2Present      bool
	V2Verified     bool
	V2Error        error
}

// Verified reports whether both signature schemes verified.
func (i *Info) Verified() bool {
	return i.V1Verified && i.V2Verified
}

// Inspect reads and verifies the v1 and v2 signatures of the archive at p.
func Inspect(p string) (*Info, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	return InspectBytes(data)
}

// InspectBytes is Inspect over an in-memory archive.
func InspectBytes(data []byte) (*Info, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	info := &Info{}
	info.V1Verified, info.V1Error = inspectV1(zr, info)

	certs, err := verifyV2(data)
	switch {
	case errors.Is(err, ErrNoSigningBlock):
		info.V2Error = err
	case err != nil:
		info.V2Present = true
		info.V2Error = err
	default:
		info.V2Present = true
		info.V2Verified = true
		if len(info.Certificates) == 0 {
			info.Certificates = certs
		}
	}

	return info, nil
}

func inspectV1(zr *zip.Reader, info *Info) (bool, error) {
	var blockFile, sfFile *zip.File
	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[f.Name] = f
		if !isSignatureFile(f.Name) {
			continue
		}
		switch strings.ToUpper(path.Ext(f.Name)) {
		case ".RSA", ".EC", ".DSA":
			blockFile = f
		}
	}
	if blockFile == nil {
		return false, errors.New("no v1 signature block")
	}
	info.SignatureBlock = blockFile.Name

	base := strings.TrimSuffix(blockFile.Name, path.Ext(blockFile.Name))
	sfFile = files[base+".SF"]
	if sfFile == nil {
		return false, fmt.Errorf("no signature file for %s", blockFile.Name)
	}

	block, err := readFile(blockFile)
	if err != nil {
		return false, err
	}
	sf, err := readFile(sfFile)
	if err != nil {
		return false, err
	}

	p7, err := pkcs7.Parse(block)
	if err != nil {
		return false, fmt.Errorf("failed to parse PKCS#7: %w", err)
	}
	info.Certificates = p7.Certificates

	p7.Content = sf
	if err := p7.Verify(); err != nil {
		return false, fmt.Errorf("v1 signature invalid: %w", err)
	}

	return true, nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}

	return data, nil
}
