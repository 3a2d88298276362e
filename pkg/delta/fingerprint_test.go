package delta

import (
	"testing"
)

// TestBuildFingerprintEmptyBuffer verifies that fingerprinting an empty
// buffer with a valid block size produces zero blocks.
func TestBuildFingerprintEmptyBuffer(t *testing.T) {
	e := NewEngine()
	doc, err := e.BuildFingerprint(nil, 4)
	if err != nil {
		t.Fatalf("BuildFingerprint failed: %v", err)
	}
	if len(doc.Blocks) != 0 {
		t.Errorf("block count = %d, want 0", len(doc.Blocks))
	}
}

// TestBuildFingerprintInvalidBlockSizeZero verifies that a zero block size
// is rejected with InvalidBlockSize.
func TestBuildFingerprintInvalidBlockSizeZero(t *testing.T) {
	e := NewEngine()
	_, err := e.BuildFingerprint([]byte("data"), 0)
	if Kind(err) != ErrorKindInvalidBlockSize {
		t.Errorf("Kind(err) = %v, want ErrorKindInvalidBlockSize", Kind(err))
	}
}

// TestBuildFingerprintInvalidBlockSizeTooLarge verifies that a block size
// exceeding the maximum is rejected with InvalidBlockSize.
func TestBuildFingerprintInvalidBlockSizeTooLarge(t *testing.T) {
	e := NewEngine()
	_, err := e.BuildFingerprint([]byte("data"), maxBlockSize+1)
	if Kind(err) != ErrorKindInvalidBlockSize {
		t.Errorf("Kind(err) = %v, want ErrorKindInvalidBlockSize", Kind(err))
	}
}

// TestBuildFingerprintClampsOversizedBlockSize verifies that a block size
// larger than the buffer is silently clamped and a diagnostic is emitted.
func TestBuildFingerprintClampsOversizedBlockSize(t *testing.T) {
	e := NewEngine()
	var diagnostics []string
	doc, err := e.BuildFingerprint([]byte("short"), 1000, WithDiagnostic(func(ev DiagnosticEvent) {
		diagnostics = append(diagnostics, ev.Message)
	}))
	if err != nil {
		t.Fatalf("BuildFingerprint failed: %v", err)
	}
	if doc.BlockSize >= 1000 {
		t.Errorf("block size not clamped: %d", doc.BlockSize)
	}
	if len(diagnostics) == 0 {
		t.Error("expected a clamp diagnostic, got none")
	}
}

// TestBuildFingerprintBelowRecommendedWarns verifies that a small block
// size on a large buffer produces a non-fatal diagnostic but still
// succeeds.
func TestBuildFingerprintBelowRecommendedWarns(t *testing.T) {
	e := NewEngine()
	data := make([]byte, 2000)
	var diagnostics []string
	doc, err := e.BuildFingerprint(data, 64, WithDiagnostic(func(ev DiagnosticEvent) {
		diagnostics = append(diagnostics, ev.Message)
	}))
	if err != nil {
		t.Fatalf("BuildFingerprint failed: %v", err)
	}
	if doc.BlockSize != 64 {
		t.Errorf("block size = %d, want 64 (should not be clamped)", doc.BlockSize)
	}
	if len(diagnostics) == 0 {
		t.Error("expected a below-recommended diagnostic, got none")
	}
}

// TestBuildFingerprintSingleByteBlockSize verifies the B=1 boundary case.
func TestBuildFingerprintSingleByteBlockSize(t *testing.T) {
	e := NewEngine()
	doc, err := e.BuildFingerprint([]byte("abc"), 1)
	if err != nil {
		t.Fatalf("BuildFingerprint failed: %v", err)
	}
	if len(doc.Blocks) != 3 {
		t.Fatalf("block count = %d, want 3", len(doc.Blocks))
	}
}

// TestBuildFingerprintBlockSizeEqualsLength verifies the B=|d| boundary
// case, which should produce exactly one block.
func TestBuildFingerprintBlockSizeEqualsLength(t *testing.T) {
	e := NewEngine()
	data := []byte("abcdefgh")
	doc, err := e.BuildFingerprint(data, uint32(len(data)))
	if err != nil {
		t.Fatalf("BuildFingerprint failed: %v", err)
	}
	if len(doc.Blocks) != 1 {
		t.Fatalf("block count = %d, want 1", len(doc.Blocks))
	}
}

// TestBuildFingerprintByteCountInvariant verifies testable property 6: the
// encoded document size is always 8 + 20*N, where N is the post-clamp
// block count.
func TestBuildFingerprintByteCountInvariant(t *testing.T) {
	e := NewEngine()
	cases := []struct {
		data      []byte
		blockSize uint32
	}{
		{[]byte(""), 4},
		{[]byte("x"), 4},
		{[]byte("Hello, World!"), 4},
		{make([]byte, 4096), 512},
		{make([]byte, 4096), 5000}, // triggers clamping
	}
	for _, c := range cases {
		doc, err := e.BuildFingerprint(c.data, c.blockSize)
		if err != nil {
			t.Fatalf("BuildFingerprint(%d bytes, B=%d) failed: %v", len(c.data), c.blockSize, err)
		}
		encoded := EncodeFingerprintDocument(doc)
		want := 8 + 20*len(doc.Blocks)
		if len(encoded) != want {
			t.Errorf("encoded size = %d, want %d", len(encoded), want)
		}
	}
}

// TestBuildFingerprintProgressMonotonic verifies testable property 7 for
// the fingerprint builder: progress percentages are non-decreasing and the
// final event reports 100%.
func TestBuildFingerprintProgressMonotonic(t *testing.T) {
	e := NewEngine()
	data := make([]byte, 5000)
	var percentages []float64
	_, err := e.BuildFingerprint(data, 4, WithProgress(func(ev ProgressEvent) {
		percentages = append(percentages, ev.Percent)
	}))
	if err != nil {
		t.Fatalf("BuildFingerprint failed: %v", err)
	}
	if len(percentages) == 0 {
		t.Fatal("expected at least one progress event")
	}
	for i := 1; i < len(percentages); i++ {
		if percentages[i] < percentages[i-1] {
			t.Errorf("percent decreased at event %d: %v -> %v", i, percentages[i-1], percentages[i])
		}
	}
	if last := percentages[len(percentages)-1]; last != 100 {
		t.Errorf("final percent = %v, want 100", last)
	}
}

// TestBuildFingerprintCancellation verifies that a cancelled context
// aborts fingerprinting and that the resulting error's kind is Cancelled.
func TestBuildFingerprintCancellation(t *testing.T) {
	e := NewEngine()
	ctx, cancel := newCancelledContext()
	cancel()
	_, err := e.BuildFingerprint(make([]byte, 10000), 4, WithCancellation(ctx))
	if Kind(err) != ErrorKindCancelled {
		t.Errorf("Kind(err) = %v, want ErrorKindCancelled", Kind(err))
	}
}
