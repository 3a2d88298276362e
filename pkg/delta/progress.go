package delta

import (
	"context"

	"github.com/google/uuid"
)

// Phase names the operation that a ProgressEvent was emitted from.
type Phase string

const (
	// PhaseFingerprint identifies progress events emitted by
	// BuildFingerprint.
	PhaseFingerprint Phase = "fingerprint"
	// PhasePatch identifies progress events emitted by BuildPatch.
	PhasePatch Phase = "patch"
)

// PatchStats carries the running byte-level accounting reported alongside
// patch-builder progress events.
type PatchStats struct {
	// BytesProcessed is the number of source bytes consumed so far.
	BytesProcessed uint64
	// MatchesFound is the number of matched blocks emitted so far.
	MatchesFound uint64
	// BytesMatched is MatchesFound multiplied by the block size.
	BytesMatched uint64
	// BytesSent is the sum of literal-run lengths emitted so far.
	BytesSent uint64
}

// ProgressEvent reports incremental progress for a single invocation of
// BuildFingerprint or BuildPatch. Events for a given operation are emitted
// in strictly non-decreasing Percent order, and the final event for an
// operation that completes successfully always reports Percent == 100.
type ProgressEvent struct {
	// OperationID correlates every event emitted by a single call to
	// BuildFingerprint or BuildPatch, letting a caller that has fanned out
	// several concurrent operations onto a shared sink demultiplex events
	// by operation.
	OperationID uuid.UUID
	// Phase identifies which operation emitted the event.
	Phase Phase
	// BlocksProcessed is the number of blocks processed so far. It is only
	// meaningful for PhaseFingerprint events.
	BlocksProcessed uint64
	// TotalBlocks is the total number of blocks the operation expects to
	// process. It is only meaningful for PhaseFingerprint events.
	TotalBlocks uint64
	// BytesProcessed is the number of source bytes consumed so far. It is
	// only meaningful for PhasePatch events.
	BytesProcessed uint64
	// TotalBytes is the total number of source bytes the operation expects
	// to process. It is only meaningful for PhasePatch events.
	TotalBytes uint64
	// Percent is the completion percentage, in [0, 100].
	Percent float64
	// MatchesFound is the number of matched blocks found so far. It is
	// only meaningful for PhasePatch events.
	MatchesFound uint64
	// PatchesCreated is the number of literal-run records created so far.
	// It is only meaningful for PhasePatch events.
	PatchesCreated uint64
	// Stats carries the detailed byte accounting for PhasePatch events. It
	// is the zero value for PhaseFingerprint events.
	Stats PatchStats
}

// BlockSource identifies where a reconstructed byte range came from when
// ApplyPatch replays a patch document.
type BlockSource string

const (
	// BlockSourceMatched indicates that a byte range was copied from a
	// matched destination block.
	BlockSourceMatched BlockSource = "matched"
	// BlockSourcePatch indicates that a byte range came from a literal
	// run in the patch document.
	BlockSourcePatch BlockSource = "patch"
)

// BlockAppliedEvent reports a single byte range appended to the
// reconstructed output buffer during ApplyPatch, in the exact order the
// bytes were appended.
type BlockAppliedEvent struct {
	// BlockIndex is the matched block's index, or nil for a literal run.
	BlockIndex *uint32
	// Source identifies whether the bytes came from a matched block or a
	// literal run.
	Source BlockSource
	// Size is the number of bytes appended.
	Size int
}

// DiagnosticEvent reports a non-fatal warning emitted by an operation, such
// as a block-size clamp or a below-recommended block size, without
// aborting the operation. It is distinct from the error channel.
type DiagnosticEvent struct {
	// OperationID correlates the diagnostic with the operation that
	// produced it.
	OperationID uuid.UUID
	// Message is a human-readable description of the condition.
	Message string
}

// ProgressFunc receives ProgressEvents from an operation.
type ProgressFunc func(ProgressEvent)

// BlockAppliedFunc receives BlockAppliedEvents from ApplyPatch.
type BlockAppliedFunc func(BlockAppliedEvent)

// DiagnosticFunc receives DiagnosticEvents from an operation.
type DiagnosticFunc func(DiagnosticEvent)

// options holds the resolved configuration for a single engine operation.
// It is built from a variadic list of Option values rather than a
// generic config map, so unrecognized configuration is inexpressible by
// construction rather than silently ignored at runtime.
type options struct {
	onProgress      ProgressFunc
	onBlockApplied  BlockAppliedFunc
	onDiagnostic    DiagnosticFunc
	signal          context.Context
	strongHasher    StrongHasher
}

// Option configures a single invocation of an engine operation.
type Option func(*options)

// WithProgress attaches a progress sink to an operation.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.onProgress = fn }
}

// WithBlockAppliedCallback attaches a reconstruction-trace sink to
// ApplyPatch.
func WithBlockAppliedCallback(fn BlockAppliedFunc) Option {
	return func(o *options) { o.onBlockApplied = fn }
}

// WithDiagnostic attaches a non-fatal diagnostic sink to an operation.
func WithDiagnostic(fn DiagnosticFunc) Option {
	return func(o *options) { o.onDiagnostic = fn }
}

// WithCancellation attaches a cancellation token to an operation. The
// operation checks ctx.Done() periodically as it walks its input and
// aborts with a Cancelled error as soon as it observes cancellation.
func WithCancellation(ctx context.Context) Option {
	return func(o *options) { o.signal = ctx }
}

// WithStrongHasher overrides the strong-digest algorithm used by an
// operation. Both the fingerprinting side and the patch-building side must
// agree on this choice out of band; the wire format carries no algorithm
// identifier.
func WithStrongHasher(hasher StrongHasher) Option {
	return func(o *options) { o.strongHasher = hasher }
}

// resolveOptions applies a list of Options atop sensible defaults.
func resolveOptions(opts []Option) *options {
	resolved := &options{
		strongHasher: MD5StrongHasher,
	}
	for _, opt := range opts {
		opt(resolved)
	}
	return resolved
}

// cancelled reports whether the operation's cancellation signal, if any,
// has fired.
func (o *options) cancelled() bool {
	if o.signal == nil {
		return false
	}
	select {
	case <-o.signal.Done():
		return true
	default:
		return false
	}
}

// diagnose emits a diagnostic event if a sink is attached.
func (o *options) diagnose(operationID uuid.UUID, message string) {
	if o.onDiagnostic != nil {
		o.onDiagnostic(DiagnosticEvent{OperationID: operationID, Message: message})
	}
}

// progress emits a progress event if a sink is attached.
func (o *options) progress(event ProgressEvent) {
	if o.onProgress != nil {
		o.onProgress(event)
	}
}

// blockApplied emits a block-applied event if a sink is attached.
func (o *options) blockApplied(event BlockAppliedEvent) {
	if o.onBlockApplied != nil {
		o.onBlockApplied(event)
	}
}
