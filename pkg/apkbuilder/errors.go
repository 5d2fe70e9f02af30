package apkbuilder

import (
	"errors"
	"fmt"
)

// ErrorKind classifies build failures.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindTemplateUnavailable
	KindConfigInvalid
	KindWriteFailure
	KindSignFailure
	// KindVerifyFailure and KindResourceRenameFailure are warnings; the build
	// still produces an archive.
	KindVerifyFailure
	KindResourceRenameFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindTemplateUnavailable:
		return "TemplateUnavailable"
	case KindConfigInvalid:
		return "ConfigInvalid"
	case KindWriteFailure:
		return "WriteFailure"
	case KindSignFailure:
		return "SignFailure"
	case KindVerifyFailure:
		return "VerifyFailure"
	case KindResourceRenameFailure:
		return "ResourceRenameFailure"
	default:
		return "Internal"
	}
}

// Fatal reports whether errors of this kind abort the build.
func (k ErrorKind) Fatal() bool {
	return k != KindVerifyFailure && k != KindResourceRenameFailure
}

// BuildError is a classified build failure or warning.
type BuildError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *BuildError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}

	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op string, err error) *BuildError {
	return &BuildError{Kind: kind, Op: op, Err: err}
}

// asBuildError returns err as a *BuildError, classifying plain errors as kind.
func asBuildError(err error, kind ErrorKind, op string) *BuildError {
	var be *BuildError
	if errors.As(err, &be) {
		return be
	}

	return newError(kind, op, err)
}

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid build config")
	// ErrNoSigner is returned when a Builder has no Signer.
	ErrNoSigner = errors.New("no signer configured")
)
