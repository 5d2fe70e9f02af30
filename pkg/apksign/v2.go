package apksign

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	v2BlockID         = 0x7109871a
	sigRSAPKCS1SHA256 = 0x0103
	sigECDSASHA256    = 0x0201
	chunkSize         = 1 << 20
	eocdSize          = 22
	eocdSignature     = 0x06054b50
)

var blockMagic = []byte("APK Sig Block 42")

var (
	// ErrNoSigningBlock is returned when an archive carries no APK signing block.
	ErrNoSigningBlock = errors.New("no APK signing block")
	// ErrDigestMismatch is returned when archive contents no longer match a signature.
	ErrDigestMismatch = errors.New("content digest mismatch")
)

var le = binary.LittleEndian

// zipSections locates the central directory and end record of an archive.
type zipSections struct {
	cdOffset   int
	eocdOffset int
}

func findSections(data []byte) (zipSections, error) {
	if len(data) < eocdSize {
		return zipSections{}, errors.New("archive too small")
	}

	minStart := max(0, len(data)-eocdSize-0xFFFF)
	for i := len(data) - eocdSize; i >= minStart; i-- {
		if le.Uint32(data[i:]) != eocdSignature {
			continue
		}
		if i+eocdSize+int(le.Uint16(data[i+20:])) != len(data) {
			continue
		}

		cdOffset := int(le.Uint32(data[i+16:]))
		cdSize := int(le.Uint32(data[i+12:]))
		if cdOffset == 0xFFFFFFFF || cdOffset+cdSize != i {
			return zipSections{}, fmt.Errorf("unsupported central directory layout at %d", cdOffset)
		}

		return zipSections{cdOffset: cdOffset, eocdOffset: i}, nil
	}

	return zipSections{}, errors.New("end of central directory not found")
}

// contentDigest computes the v2 chunked SHA-256 digest over the three
// protected sections. eocd must already point its CD offset at the start of
// the signing block.
func contentDigest(sections ...[]byte) []byte {
	var chunks [][]byte
	for _, s := range sections {
		for off := 0; off < len(s); off += chunkSize {
			end := min(off+chunkSize, len(s))
			chunks = append(chunks, s[off:end])
		}
	}

	top := sha256.New()
	top.Write([]byte{0x5a})
	top.Write(le.AppendUint32(nil, uint32(len(chunks))))

	for _, c := range chunks {
		h := sha256.New()
		h.Write([]byte{0xa5})
		h.Write(le.AppendUint32(nil, uint32(len(c))))
		h.Write(c)
		top.Write(h.Sum(nil))
	}

	return top.Sum(nil)
}

func signatureAlgorithm(key crypto.Signer) (uint32, error) {
	switch key.(type) {
	case *rsa.PrivateKey:
		return sigRSAPKCS1SHA256, nil
	case *ecdsa.PrivateKey:
		return sigECDSASHA256, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
}

// buildV2Block creates an APK Signing Block holding one v2 signer.
func buildV2Block(digest []byte, id *Identity) ([]byte, error) {
	algo, err := signatureAlgorithm(id.PrivateKey)
	if err != nil {
		return nil, err
	}

	var certs [][]byte
	for _, c := range id.Chain {
		certs = append(certs, prefixed(c.Raw))
	}
	if len(certs) == 0 {
		certs = append(certs, prefixed(id.Certificate.Raw))
	}

	signedData := concat(
		prefixed(prefixed(concat(le.AppendUint32(nil, algo), prefixed(digest)))),
		prefixed(concat(certs...)),
		prefixed(nil),
	)

	hashed := sha256.Sum256(signedData)
	sig, err := id.PrivateKey.Sign(rand.Reader, hashed[:], crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("failed to sign v2 data: %w", err)
	}

	pub, err := x509.MarshalPKIXPublicKey(id.PrivateKey.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}

	signer := concat(
		prefixed(signedData),
		prefixed(prefixed(concat(le.AppendUint32(nil, algo), prefixed(sig)))),
		prefixed(pub),
	)
	value := prefixed(prefixed(signer))

	pair := concat(
		binary.LittleEndian.AppendUint64(nil, uint64(4+len(value))),
		le.AppendUint32(nil, v2BlockID),
		value,
	)

	size := uint64(len(pair) + 8 + len(blockMagic))
	block := concat(
		binary.LittleEndian.AppendUint64(nil, size),
		pair,
		binary.LittleEndian.AppendUint64(nil, size),
		blockMagic,
	)

	return block, nil
}

// insertV2 returns data with a v2 signing block in front of the central
// directory.
func insertV2(data []byte, id *Identity) ([]byte, error) {
	sec, err := findSections(data)
	if err != nil {
		return nil, err
	}

	contents := data[:sec.cdOffset]
	cd := data[sec.cdOffset:sec.eocdOffset]
	eocd := bytes.Clone(data[sec.eocdOffset:])

	block, err := buildV2Block(contentDigest(contents, cd, eocd), id)
	if err != nil {
		return nil, err
	}

	le.PutUint32(eocd[16:], uint32(sec.cdOffset+len(block)))

	return concat(contents, block, cd, eocd), nil
}

// v2Signer is one parsed signer of a v2 block.
type v2Signer struct {
	signedData   []byte
	digests      map[uint32][]byte
	certificates []*x509.Certificate
	signatures   map[uint32][]byte
	publicKey    []byte
}

// readSigningBlock returns the raw pairs area of the signing block and its
// start offset.
func readSigningBlock(data []byte) ([]byte, int, zipSections, error) {
	sec, err := findSections(data)
	if err != nil {
		return nil, 0, sec, err
	}

	end := sec.cdOffset
	if end < 16+8 || !bytes.Equal(data[end-16:end], blockMagic) {
		return nil, 0, sec, ErrNoSigningBlock
	}

	size := binary.LittleEndian.Uint64(data[end-24:])
	start := end - int(size) - 8
	if size < 24 || start < 0 || binary.LittleEndian.Uint64(data[start:]) != size {
		return nil, 0, sec, fmt.Errorf("%w: corrupt block size", ErrNoSigningBlock)
	}

	return data[start+8 : end-24], start, sec, nil
}

func findPair(pairs []byte, id uint32) ([]byte, bool) {
	for len(pairs) >= 12 {
		n := binary.LittleEndian.Uint64(pairs)
		if n < 4 || n > uint64(len(pairs)-8) {
			return nil, false
		}
		if le.Uint32(pairs[8:]) == id {
			return pairs[12 : 8+n], true
		}
		pairs = pairs[8+n:]
	}

	return nil, false
}

func parseV2Signers(value []byte) ([]v2Signer, error) {
	list, _, err := readPrefixed(value)
	if err != nil {
		return nil, err
	}

	var out []v2Signer
	for len(list) > 0 {
		var raw []byte
		if raw, list, err = readPrefixed(list); err != nil {
			return nil, err
		}

		var s v2Signer
		var sigs, rest []byte
		if s.signedData, rest, err = readPrefixed(raw); err != nil {
			return nil, err
		}
		if sigs, rest, err = readPrefixed(rest); err != nil {
			return nil, err
		}
		if s.publicKey, _, err = readPrefixed(rest); err != nil {
			return nil, err
		}

		if s.signatures, err = readAlgoList(sigs); err != nil {
			return nil, err
		}

		digests, rest, err := readPrefixed(s.signedData)
		if err != nil {
			return nil, err
		}
		if s.digests, err = readAlgoList(digests); err != nil {
			return nil, err
		}
		certs, _, err := readPrefixed(rest)
		if err != nil {
			return nil, err
		}
		for len(certs) > 0 {
			var der []byte
			if der, certs, err = readPrefixed(certs); err != nil {
				return nil, err
			}
			c, err := x509.ParseCertificate(der)
			if err != nil {
				return nil, fmt.Errorf("failed to parse v2 certificate: %w", err)
			}
			s.certificates = append(s.certificates, c)
		}

		out = append(out, s)
	}

	return out, nil
}

// readAlgoList parses a sequence of (uint32 algorithm, prefixed bytes) records.
func readAlgoList(b []byte) (map[uint32][]byte, error) {
	out := map[uint32][]byte{}
	for len(b) > 0 {
		rec, rest, err := readPrefixed(b)
		if err != nil {
			return nil, err
		}
		if len(rec) < 4 {
			return nil, errors.New("short algorithm record")
		}
		v, _, err := readPrefixed(rec[4:])
		if err != nil {
			return nil, err
		}
		out[le.Uint32(rec)] = v
		b = rest
	}

	return out, nil
}

// verifyV2 checks every v2 signer of data and returns their certificates.
func verifyV2(data []byte) ([]*x509.Certificate, error) {
	pairs, start, sec, err := readSigningBlock(data)
	if err != nil {
		return nil, err
	}
	value, ok := findPair(pairs, v2BlockID)
	if !ok {
		return nil, fmt.Errorf("%w: no v2 signature", ErrNoSigningBlock)
	}

	signers, err := parseV2Signers(value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse v2 block: %w", err)
	}
	if len(signers) == 0 {
		return nil, errors.New("v2 block has no signers")
	}

	eocd := bytes.Clone(data[sec.eocdOffset:])
	le.PutUint32(eocd[16:], uint32(start))
	digest := contentDigest(data[:start], data[sec.cdOffset:sec.eocdOffset], eocd)

	var certs []*x509.Certificate
	for _, s := range signers {
		pub, err := x509.ParsePKIXPublicKey(s.publicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse v2 public key: %w", err)
		}
		hashed := sha256.Sum256(s.signedData)

		verified := false
		for algo, sig := range s.signatures {
			switch algo {
			case sigRSAPKCS1SHA256:
				k, ok := pub.(*rsa.PublicKey)
				if !ok || rsa.VerifyPKCS1v15(k, crypto.SHA256, hashed[:], sig) != nil {
					return nil, errors.New("v2 RSA signature invalid")
				}
			case sigECDSASHA256:
				k, ok := pub.(*ecdsa.PublicKey)
				if !ok || !ecdsa.VerifyASN1(k, hashed[:], sig) {
					return nil, errors.New("v2 ECDSA signature invalid")
				}
			default:
				continue
			}
			if !bytes.Equal(s.digests[algo], digest) {
				return nil, ErrDigestMismatch
			}
			verified = true
		}
		if !verified {
			return nil, errors.New("v2 signer has no supported signature")
		}
		certs = append(certs, s.certificates...)
	}

	return certs, nil
}

func prefixed(b []byte) []byte {
	return append(le.AppendUint32(make([]byte, 0, 4+len(b)), uint32(len(b))), b...)
}

func readPrefixed(b []byte) ([]byte, []byte, error) {
	if len(b) < 4 {
		return nil, nil, errors.New("truncated length prefix")
	}
	n := int(le.Uint32(b))
	if n > len(b)-4 {
		return nil, nil, errors.New("length prefix exceeds data")
	}

	return b[4 : 4+n], b[4+n:], nil
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}
