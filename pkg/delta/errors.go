package delta

import "github.com/pkg/errors"

// ErrorKind classifies the sentinel errors that the engine can return. It
// lets callers branch on error category without relying on message text,
// while the wrapped message itself still matches the stable phrasing that
// the wire contract between independent implementations depends on.
type ErrorKind int

const (
	// ErrorKindNone indicates that an error was not produced by this
	// package, or that no error occurred.
	ErrorKindNone ErrorKind = iota
	// ErrorKindInvalidBlockSize indicates that a requested block size is
	// non-integer, less than one, or greater than the maximum permitted
	// block size.
	ErrorKindInvalidBlockSize
	// ErrorKindInvalidInput indicates that an input that was expected to be
	// a byte buffer was not usable as one.
	ErrorKindInvalidInput
	// ErrorKindEmpty indicates that a merge was requested with no
	// fingerprint documents.
	ErrorKindEmpty
	// ErrorKindBlockSizeMismatch indicates that fingerprint documents being
	// merged do not share a common block size.
	ErrorKindBlockSizeMismatch
	// ErrorKindCorruptFingerprint indicates that a fingerprint document's
	// header disagrees with its payload.
	ErrorKindCorruptFingerprint
	// ErrorKindCorruptPatch indicates that a patch document references data
	// it does not contain or a block index outside the valid range.
	ErrorKindCorruptPatch
	// ErrorKindCancelled indicates that an operation observed cancellation
	// before completing.
	ErrorKindCancelled
)

// String provides a human-readable name for an ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindInvalidBlockSize:
		return "invalid block size"
	case ErrorKindInvalidInput:
		return "invalid input"
	case ErrorKindEmpty:
		return "empty"
	case ErrorKindBlockSizeMismatch:
		return "block size mismatch"
	case ErrorKindCorruptFingerprint:
		return "corrupt fingerprint"
	case ErrorKindCorruptPatch:
		return "corrupt patch"
	case ErrorKindCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// kindError is a sentinel error with an attached ErrorKind. It is always
// wrapped with github.com/pkg/errors before being returned so that callers
// retain a full cause chain.
type kindError struct {
	kind    ErrorKind
	message string
}

// Error implements the error interface.
func (e *kindError) Error() string {
	return e.message
}

// newKindError constructs a kindError for the given kind and message. The
// messages here are the stable, matchable phrases required by the wire
// contract's error handling design.
func newKindError(kind ErrorKind, message string) error {
	return &kindError{kind: kind, message: message}
}

var (
	errInvalidBlockSizeTooSmall = newKindError(ErrorKindInvalidBlockSize, "block size must be a positive integer")
	errInvalidBlockSizeTooLarge = newKindError(ErrorKindInvalidBlockSize, "block size must not exceed 1048576 bytes")
	errEmptyMerge               = newKindError(ErrorKindEmpty, "at least one fingerprint document is required")
	errBlockSizeMismatch        = newKindError(ErrorKindBlockSizeMismatch, "all fingerprint documents must have the same block size")
	errCancelled                = newKindError(ErrorKindCancelled, "operation cancelled")
)

// Kind extracts the ErrorKind from an error produced by this package. It
// walks the error's cause chain using errors.Cause so that wrapped errors
// are still classifiable. It returns ErrorKindNone for errors not produced
// by this package (including nil).
func Kind(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	if ke, ok := errors.Cause(err).(*kindError); ok {
		return ke.kind
	}
	return ErrorKindNone
}

// invalidBlockSize constructs the appropriate invalid-block-size error for a
// requested block size.
func invalidBlockSize(blockSize int64) error {
	if blockSize > maxBlockSize {
		return errInvalidBlockSizeTooLarge
	}
	return errInvalidBlockSizeTooSmall
}

// corruptFingerprintf constructs a CorruptFingerprint error with a formatted
// message.
func corruptFingerprintf(format string, args ...interface{}) error {
	return errors.Wrapf(newKindError(ErrorKindCorruptFingerprint, "corrupt fingerprint document"), format, args...)
}

// corruptPatchf constructs a CorruptPatch error with a formatted message.
func corruptPatchf(format string, args ...interface{}) error {
	return errors.Wrapf(newKindError(ErrorKindCorruptPatch, "corrupt patch document"), format, args...)
}

// invalidInputf constructs an InvalidInput error with a formatted message.
func invalidInputf(format string, args ...interface{}) error {
	return errors.Wrapf(newKindError(ErrorKindInvalidInput, "invalid input"), format, args...)
}
