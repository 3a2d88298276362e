package delta

import (
	"bytes"
	"testing"
)

// scenario captures one end-to-end destination/source pair together with
// the patch a faithful implementation produces against it.
type scenario struct {
	name        string
	blockSize   uint32
	destination string
	source      string
	matches     []uint32
	records     []PatchRecord
}

// scenarios enumerates the worked examples, with matches/records pinned to
// values independently verified by simulating the rolling-checksum and
// literal-run formulas byte-for-byte outside of Go. In the "reordered
// blocks" scenario, with B=5 the hyphens in "AAAAA-BBBBB-CCCCC" do not sit
// on block boundaries relative to "CCCCC-AAAAA-BBBBB", so the matcher
// finds matches=[1,2] rather than every block; the round-trip invariant
// holds regardless of exactly which blocks match, so that is what matters
// operationally. The "reordered blocks with an intervening literal"
// scenario instead produces a genuinely descending match stream
// (matches=[2,1]) with a literal run anchored between the two matches,
// which is what exercises the anchor's stream-position semantics rather
// than its coincidental equality with block index in ascending streams.
var scenarios = []scenario{
	{
		name:        "identical buffers",
		blockSize:   4,
		destination: "Hello, World!",
		source:      "Hello, World!",
		matches:     []uint32{1, 2, 3, 4},
		records:     nil,
	},
	{
		name:        "wholly different buffers",
		blockSize:   4,
		destination: "Hello, World!",
		source:      "Goodbye, Planet!",
		matches:     []uint32{4},
		records:     []PatchRecord{{Anchor: 0, Literal: []byte("Goodbye, Planet")}},
	},
	{
		name:        "destination is a prefix of source",
		blockSize:   4,
		destination: "Hello",
		source:      "Hello, World!",
		matches:     []uint32{1},
		records:     []PatchRecord{{Anchor: 1, Literal: []byte("o, World!")}},
	},
	{
		name:        "destination is a suffix of source",
		blockSize:   4,
		destination: "World!",
		source:      "Hello, World!",
		matches:     []uint32{1, 2},
		records:     []PatchRecord{{Anchor: 0, Literal: []byte("Hello, ")}},
	},
	{
		name:        "reordered blocks",
		blockSize:   5,
		destination: "AAAAA-BBBBB-CCCCC",
		source:      "CCCCC-AAAAA-BBBBB",
		matches:     []uint32{1, 2},
		records: []PatchRecord{
			{Anchor: 0, Literal: []byte("CCCCC-")},
			{Anchor: 2, Literal: []byte("B")},
		},
	},
	{
		name:        "reordered blocks with an intervening literal",
		blockSize:   5,
		destination: "AAAAABBBBB",
		source:      "BBBBBzAAAAA",
		matches:     []uint32{2, 1},
		records: []PatchRecord{
			{Anchor: 1, Literal: []byte("z")},
		},
	},
	{
		name:        "empty destination",
		blockSize:   4,
		destination: "",
		source:      "Hello, World!",
		matches:     nil,
		records:     []PatchRecord{{Anchor: 0, Literal: []byte("Hello, World!")}},
	},
}

// TestBuildPatchScenarios exercises the worked examples end to end: build a
// fingerprint of the destination, diff the source against it, and check
// the resulting matches and literal records.
func TestBuildPatchScenarios(t *testing.T) {
	e := NewEngine()
	for _, s := range scenarios {
		t.Run(s.name, func(t *testing.T) {
			fingerprint, err := e.BuildFingerprint([]byte(s.destination), s.blockSize)
			if err != nil {
				t.Fatalf("BuildFingerprint failed: %v", err)
			}
			patch, err := e.BuildPatch(fingerprint, []byte(s.source))
			if err != nil {
				t.Fatalf("BuildPatch failed: %v", err)
			}
			if len(patch.Matches) != len(s.matches) {
				t.Fatalf("matches = %v, want %v", patch.Matches, s.matches)
			}
			for i := range s.matches {
				if patch.Matches[i] != s.matches[i] {
					t.Errorf("matches = %v, want %v", patch.Matches, s.matches)
					break
				}
			}
			if len(patch.Records) != len(s.records) {
				t.Fatalf("records = %+v, want %+v", patch.Records, s.records)
			}
			for i := range s.records {
				if patch.Records[i].Anchor != s.records[i].Anchor || !bytes.Equal(patch.Records[i].Literal, s.records[i].Literal) {
					t.Errorf("record %d = %+v, want %+v", i, patch.Records[i], s.records[i])
				}
			}
		})
	}
}

// TestApplyPatchScenariosRoundTrip verifies testable property 1: applying
// the patch produced against destination reconstructs source exactly, for
// every worked example.
func TestApplyPatchScenariosRoundTrip(t *testing.T) {
	e := NewEngine()
	for _, s := range scenarios {
		t.Run(s.name, func(t *testing.T) {
			fingerprint, err := e.BuildFingerprint([]byte(s.destination), s.blockSize)
			if err != nil {
				t.Fatalf("BuildFingerprint failed: %v", err)
			}
			patch, err := e.BuildPatch(fingerprint, []byte(s.source))
			if err != nil {
				t.Fatalf("BuildPatch failed: %v", err)
			}
			reconstructed, err := e.ApplyPatch(patch, []byte(s.destination))
			if err != nil {
				t.Fatalf("ApplyPatch failed: %v", err)
			}
			if string(reconstructed) != s.source {
				t.Errorf("reconstructed = %q, want %q", reconstructed, s.source)
			}
		})
	}
}

// TestBuildPatchSelfDiffIsIdentity verifies testable property 2: diffing a
// buffer against its own fingerprint always yields an identity patch, for
// a range of block sizes including boundary values.
func TestBuildPatchSelfDiffIsIdentity(t *testing.T) {
	e := NewEngine()
	data := []byte("the quick brown fox jumps over the lazy dog")
	for _, blockSize := range []uint32{1, 3, 7, uint32(len(data)), uint32(len(data)) + 100} {
		fingerprint, err := e.BuildFingerprint(data, blockSize)
		if err != nil {
			t.Fatalf("BuildFingerprint(B=%d) failed: %v", blockSize, err)
		}
		patch, err := e.BuildPatch(fingerprint, data)
		if err != nil {
			t.Fatalf("BuildPatch(B=%d) failed: %v", blockSize, err)
		}
		if len(patch.Records) != 0 {
			t.Errorf("B=%d: expected no literal records for a self-diff, got %+v", blockSize, patch.Records)
		}
		for i, m := range patch.Matches {
			if m != uint32(i+1) {
				t.Errorf("B=%d: match stream %v is not sequential", blockSize, patch.Matches)
				break
			}
		}
	}
}

// TestIsIdentityPatchRejectsReorderedFullMatches verifies that a full 1..M
// match set out of order is NOT an identity patch, even though it
// references every destination block.
func TestIsIdentityPatchRejectsReorderedFullMatches(t *testing.T) {
	p := &PatchDocument{BlockSize: 4, Matches: []uint32{2, 1}}
	if isIdentityPatch(p, 2) {
		t.Error("reordered full match set treated as identity")
	}
}

// TestApplyPatchCancellation verifies that a cancelled context aborts
// ApplyPatch with a Cancelled error.
func TestApplyPatchCancellation(t *testing.T) {
	e := NewEngine()
	patch := &PatchDocument{
		BlockSize: 4,
		Records: []PatchRecord{
			{Anchor: 0, Literal: []byte("a")},
			{Anchor: 0, Literal: []byte("b")},
		},
	}
	ctx, cancel := newCancelledContext()
	cancel()
	_, err := e.ApplyPatch(patch, []byte("destination"), WithCancellation(ctx))
	if Kind(err) != ErrorKindCancelled {
		t.Errorf("Kind(err) = %v, want ErrorKindCancelled", Kind(err))
	}
}

// TestApplyPatchCorruptMatchIndex verifies that a match index outside the
// destination's valid block range is reported as CorruptPatch.
func TestApplyPatchCorruptMatchIndex(t *testing.T) {
	e := NewEngine()
	patch := &PatchDocument{BlockSize: 4, Matches: []uint32{99}}
	_, err := e.ApplyPatch(patch, []byte("short"))
	if Kind(err) != ErrorKindCorruptPatch {
		t.Errorf("Kind(err) = %v, want ErrorKindCorruptPatch", Kind(err))
	}
}

// TestBuildPatchBlockAppliedEvents verifies that block-applied callbacks
// fire for both matched and literal spans during ApplyPatch.
func TestBuildPatchBlockAppliedEvents(t *testing.T) {
	e := NewEngine()
	fingerprint, err := e.BuildFingerprint([]byte("Hello, World!"), 4)
	if err != nil {
		t.Fatalf("BuildFingerprint failed: %v", err)
	}
	patch, err := e.BuildPatch(fingerprint, []byte("Hello"))
	if err != nil {
		t.Fatalf("BuildPatch failed: %v", err)
	}

	var sources []BlockSource
	_, err = e.ApplyPatch(patch, []byte("Hello, World!"), WithBlockAppliedCallback(func(ev BlockAppliedEvent) {
		sources = append(sources, ev.Source)
	}))
	if err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	// The patch is matches=[1] with one literal "o" anchored after it.
	want := []BlockSource{BlockSourceMatched, BlockSourcePatch}
	if len(sources) != len(want) || sources[0] != want[0] || sources[1] != want[1] {
		t.Fatalf("block-applied sources = %v, want %v", sources, want)
	}
}
