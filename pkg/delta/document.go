package delta

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// strongDigestSize is the fixed width, in bytes, of a strong digest.
	// The wire contract fixes this at 128 bits; the concrete algorithm used
	// to produce it is a build-time choice shared out of band by both
	// peers (see StrongHasher).
	strongDigestSize = 16
	// blockHashRecordSize is the serialized size, in bytes, of a single
	// BlockFingerprint entry within a FingerprintDocument: 4 bytes of weak
	// checksum followed by strongDigestSize bytes of strong digest.
	blockHashRecordSize = 4 + strongDigestSize
	// fingerprintHeaderSize is the serialized size, in bytes, of a
	// FingerprintDocument header: block size followed by block count.
	fingerprintHeaderSize = 8
	// patchHeaderSize is the serialized size, in bytes, of a PatchDocument
	// header: block size, patch count, and match count.
	patchHeaderSize = 12
	// maxBlockSize is the largest block size the fingerprint builder will
	// accept.
	maxBlockSize = 1 << 20
)

// BlockFingerprint is the weak and strong checksum pair computed for a
// single block of a destination buffer. Its block index is implicit
// (positional) within a FingerprintDocument's Blocks slice.
type BlockFingerprint struct {
	// Weak is the 32-bit rolling checksum of the block.
	Weak uint32
	// Strong is the 128-bit cryptographic digest of the block.
	Strong [strongDigestSize]byte
}

// FingerprintDocument is an ordered list of BlockFingerprints sharing a
// single block size, as produced by BuildFingerprint. It is immutable once
// built.
type FingerprintDocument struct {
	// BlockSize is the block size, in bytes, used to partition the
	// destination buffer that this document fingerprints.
	BlockSize uint32
	// Blocks is the ordered list of per-block fingerprints. Blocks[i]
	// corresponds to 1-based block index i+1.
	Blocks []BlockFingerprint
}

// BlockCount returns the number of blocks described by the document.
func (d *FingerprintDocument) BlockCount() int {
	if d == nil {
		return 0
	}
	return len(d.Blocks)
}

// EnsureValid verifies that a FingerprintDocument is internally consistent:
// a nil document is invalid, a document with zero blocks is valid whatever
// its block size, and a non-zero block count requires a positive block size.
func (d *FingerprintDocument) EnsureValid() error {
	if d == nil {
		return errors.New("nil fingerprint document")
	}
	if len(d.Blocks) == 0 {
		return nil
	}
	if d.BlockSize == 0 {
		return errors.New("non-zero block count with zero block size")
	}
	return nil
}

// MergedFingerprintDocument is the result of MergeFingerprints. It shares
// FingerprintDocument's field shape but is a distinct Go type so that the
// type checker - rather than a runtime flag - prevents a caller from
// passing a merged document's positionally-meaningless block indices to
// ApplyPatch, which assumes block index j addresses destination bytes at
// (j-1)*BlockSize.
type MergedFingerprintDocument struct {
	// BlockSize is the common block size shared by all merged inputs.
	BlockSize uint32
	// Blocks is the deduplicated, order-of-first-appearance list of
	// fingerprints. Its indices are dense labels, not buffer positions.
	Blocks []BlockFingerprint
}

// BlockCount returns the number of distinct blocks in the merged document.
func (d *MergedFingerprintDocument) BlockCount() int {
	if d == nil {
		return 0
	}
	return len(d.Blocks)
}

// PatchRecord describes a literal run of bytes that must be inserted after
// replaying the first Anchor entries of the match stream (in stream
// order, not by block-index value). An Anchor of 0 means the literal run
// precedes any match. Anchoring by stream position rather than by the
// matched block's index is what keeps reconstruction correct when the
// match stream is not ascending, as it can be after a block reorder.
type PatchRecord struct {
	// Anchor is the number of leading entries of Matches (0..len(Matches))
	// that must be replayed before this literal run.
	Anchor uint32
	// Literal holds the literal bytes to insert at this point in the
	// reconstructed source buffer.
	Literal []byte
}

// PatchDocument is the serializable record of how to reconstruct a source
// buffer from a destination buffer: an ordered stream of matched block
// indices plus an ordered stream of literal-run records, interleaved by
// each record's position in the match stream (its Anchor). It is
// immutable once built.
type PatchDocument struct {
	// BlockSize is the block size used when the underlying fingerprint
	// document was built; it governs how matched block indices are mapped
	// back to destination byte ranges during application.
	BlockSize uint32
	// Matches is the ordered list of matched destination block indices.
	Matches []uint32
	// Records is the ordered list of literal-run records.
	Records []PatchRecord
}

// PatchCount returns the number of literal-run records in the document.
func (p *PatchDocument) PatchCount() int {
	if p == nil {
		return 0
	}
	return len(p.Records)
}

// MatchCount returns the number of matched blocks referenced by the
// document.
func (p *PatchDocument) MatchCount() int {
	if p == nil {
		return 0
	}
	return len(p.Matches)
}

// EnsureValid verifies that successive patch records have non-decreasing
// anchors. It does not validate match indices against any particular
// destination buffer, since the document carries no reference to one.
func (p *PatchDocument) EnsureValid() error {
	if p == nil {
		return errors.New("nil patch document")
	}
	for i := 1; i < len(p.Records); i++ {
		if p.Records[i].Anchor < p.Records[i-1].Anchor {
			return errors.New("patch records have decreasing anchors")
		}
	}
	return nil
}

// EncodeFingerprintDocument serializes a FingerprintDocument to its wire
// format: a block size and block count header followed by per-block weak
// checksum and strong digest pairs, all little-endian.
func EncodeFingerprintDocument(d *FingerprintDocument) []byte {
	buffer := make([]byte, fingerprintHeaderSize+blockHashRecordSize*len(d.Blocks))
	binary.LittleEndian.PutUint32(buffer[0:4], d.BlockSize)
	binary.LittleEndian.PutUint32(buffer[4:8], uint32(len(d.Blocks)))
	offset := fingerprintHeaderSize
	for _, b := range d.Blocks {
		binary.LittleEndian.PutUint32(buffer[offset:offset+4], b.Weak)
		copy(buffer[offset+4:offset+blockHashRecordSize], b.Strong[:])
		offset += blockHashRecordSize
	}
	return buffer
}

// DecodeFingerprintDocument parses a FingerprintDocument from its wire
// format. It returns a CorruptFingerprint error if the header's block
// count disagrees with the length of the payload.
func DecodeFingerprintDocument(data []byte) (*FingerprintDocument, error) {
	if len(data) < fingerprintHeaderSize {
		return nil, corruptFingerprintf("header truncated: have %d bytes, need at least %d", len(data), fingerprintHeaderSize)
	}
	blockSize := binary.LittleEndian.Uint32(data[0:4])
	count := binary.LittleEndian.Uint32(data[4:8])
	expected := fingerprintHeaderSize + blockHashRecordSize*int(count)
	if len(data) != expected {
		return nil, corruptFingerprintf("header declares %d blocks (expects %d bytes) but payload is %d bytes", count, expected, len(data))
	}
	blocks := make([]BlockFingerprint, count)
	offset := fingerprintHeaderSize
	for i := range blocks {
		blocks[i].Weak = binary.LittleEndian.Uint32(data[offset : offset+4])
		copy(blocks[i].Strong[:], data[offset+4:offset+blockHashRecordSize])
		offset += blockHashRecordSize
	}
	return &FingerprintDocument{BlockSize: blockSize, Blocks: blocks}, nil
}

// EncodePatchDocument serializes a PatchDocument to its wire format: a
// header of block size, patch count, and match count, followed by the
// match indices, followed by the concatenated patch
// records (each a 4-byte anchor, a 4-byte literal length, and the literal
// bytes themselves), all little-endian with no inter-record framing.
func EncodePatchDocument(p *PatchDocument) []byte {
	size := patchHeaderSize + 4*len(p.Matches)
	for _, r := range p.Records {
		size += 8 + len(r.Literal)
	}
	buffer := make([]byte, size)
	binary.LittleEndian.PutUint32(buffer[0:4], p.BlockSize)
	binary.LittleEndian.PutUint32(buffer[4:8], uint32(len(p.Records)))
	binary.LittleEndian.PutUint32(buffer[8:12], uint32(len(p.Matches)))
	offset := patchHeaderSize
	for _, m := range p.Matches {
		binary.LittleEndian.PutUint32(buffer[offset:offset+4], m)
		offset += 4
	}
	for _, r := range p.Records {
		binary.LittleEndian.PutUint32(buffer[offset:offset+4], r.Anchor)
		binary.LittleEndian.PutUint32(buffer[offset+4:offset+8], uint32(len(r.Literal)))
		offset += 8
		copy(buffer[offset:offset+len(r.Literal)], r.Literal)
		offset += len(r.Literal)
	}
	return buffer
}

// DecodePatchDocument parses a PatchDocument from its wire format. It
// returns a CorruptPatch error if the buffer is truncated, if a declared
// literal length would overrun the buffer, or if the header's counts
// disagree with what can actually be walked from the payload.
func DecodePatchDocument(data []byte) (*PatchDocument, error) {
	if len(data) < patchHeaderSize {
		return nil, corruptPatchf("header truncated: have %d bytes, need at least %d", len(data), patchHeaderSize)
	}
	blockSize := binary.LittleEndian.Uint32(data[0:4])
	patchCount := binary.LittleEndian.Uint32(data[4:8])
	matchCount := binary.LittleEndian.Uint32(data[8:12])

	offset := patchHeaderSize
	matchesEnd := offset + 4*int(matchCount)
	if matchesEnd > len(data) || matchesEnd < offset {
		return nil, corruptPatchf("match index array overruns buffer")
	}
	matches := make([]uint32, matchCount)
	for i := range matches {
		matches[i] = binary.LittleEndian.Uint32(data[offset : offset+4])
		offset += 4
	}

	records := make([]PatchRecord, patchCount)
	for i := range records {
		if offset+8 > len(data) {
			return nil, corruptPatchf("patch record header overruns buffer")
		}
		anchor := binary.LittleEndian.Uint32(data[offset : offset+4])
		literalLength := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		offset += 8
		end := offset + int(literalLength)
		if end > len(data) || end < offset {
			return nil, corruptPatchf("literal run of length %d overruns buffer", literalLength)
		}
		literal := make([]byte, literalLength)
		copy(literal, data[offset:end])
		records[i] = PatchRecord{Anchor: anchor, Literal: literal}
		offset = end
	}

	if offset != len(data) {
		return nil, corruptPatchf("trailing data after last patch record")
	}

	return &PatchDocument{BlockSize: blockSize, Matches: matches, Records: records}, nil
}
