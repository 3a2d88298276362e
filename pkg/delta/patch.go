package delta

import (
	"github.com/google/uuid"
)

// progressByteMultiple is the multiple of the block size, measured in
// bytes processed since the last progress event, that triggers a new
// progress event from the patch builder.
const progressByteMultiple = 10

// matchCandidate is an entry in the ephemeral match index built at the
// start of BuildPatch: one destination block's checksums plus its 1-based
// block index.
type matchCandidate struct {
	weak   uint32
	strong [strongDigestSize]byte
	index  uint32
}

// buildMatchIndex constructs the bucket-keyed lookup table: every
// destination block hashed into the bucket given by the low 16 bits of its
// weak checksum.
func buildMatchIndex(fingerprint *FingerprintDocument) map[uint16][]matchCandidate {
	index := make(map[uint16][]matchCandidate, len(fingerprint.Blocks))
	for i, b := range fingerprint.Blocks {
		bucket := bucketHash(b.Weak)
		index[bucket] = append(index[bucket], matchCandidate{
			weak:   b.Weak,
			strong: b.Strong,
			index:  uint32(i + 1),
		})
	}
	return index
}

// findMatch searches the match index for a destination block whose weak
// and strong checksums both match the given window. It returns the
// matched block's 1-based index and true on a hit.
func findMatch(index map[uint16][]matchCandidate, weak uint32, window []byte, hasher StrongHasher) (uint32, bool, error) {
	candidates := index[bucketHash(weak)]

	var strong [strongDigestSize]byte
	haveStrong := false
	for _, c := range candidates {
		if c.weak != weak {
			continue
		}
		if !haveStrong {
			var err error
			strong, err = strongDigest(hasher, window)
			if err != nil {
				return 0, false, err
			}
			haveStrong = true
		}
		if c.strong == strong {
			return c.index, true, nil
		}
	}
	return 0, false, nil
}

// BuildPatch parses a fingerprint document into a lookup index, then
// slides a block-sized window over source one byte at a time when the
// window does not match the index and one block at a time when it does,
// producing a PatchDocument that interleaves matched-block references
// with literal runs.
//
// For performance reasons this method does not independently verify every
// invariant of the supplied fingerprint document; callers that receive a
// fingerprint document from an untrusted source should call its
// EnsureValid method first.
func (e *Engine) BuildPatch(fingerprint *FingerprintDocument, source []byte, opts ...Option) (*PatchDocument, error) {
	resolved := resolveOptions(opts)
	operationID := uuid.New()

	if fingerprint == nil {
		return nil, invalidInputf("nil fingerprint document")
	}

	blockSize := fingerprint.BlockSize
	blockCount := len(fingerprint.Blocks)

	// An empty destination can never produce a match, so the entire source
	// is a single literal run anchored before any match. This also keeps
	// the zero block size that an empty fingerprint carries out of the
	// windowing loop below.
	if blockCount == 0 {
		result := &PatchDocument{BlockSize: blockSize}
		if len(source) > 0 {
			literal := make([]byte, len(source))
			copy(literal, source)
			result.Records = append(result.Records, PatchRecord{Anchor: 0, Literal: literal})
		}
		resolved.progress(ProgressEvent{
			OperationID: operationID,
			Phase:       PhasePatch,
			Percent:     100,
			PatchesCreated: uint64(len(result.Records)),
			Stats: PatchStats{
				BytesProcessed: uint64(len(source)),
				BytesSent:      uint64(len(source)),
			},
		})
		return result, nil
	}

	index := buildMatchIndex(fingerprint)

	var (
		matches []uint32
		records []PatchRecord
		literal []byte
		anchor  uint32

		state     rollingChecksum
		haveState bool

		bytesMatched       uint64
		bytesSent          uint64
		lastProgressCursor uint64
	)

	totalBytes := uint64(len(source))
	i := 0
	for i < len(source) {
		if resolved.cancelled() {
			return nil, errCancelled
		}

		w := blockSize
		if remaining := len(source) - i; uint64(remaining) < uint64(w) {
			w = uint32(remaining)
		}
		window := source[i : i+int(w)]

		var weak uint32
		if haveState && w == blockSize {
			weak = state.value()
		} else {
			state = computeWeakChecksum(window)
			weak = state.value()
			haveState = false
		}

		matchIndex, matched, err := findMatch(index, weak, window, resolved.strongHasher)
		if err != nil {
			return nil, err
		}

		if matched {
			// When the block after the previous match carries the same
			// checksums as the hit, prefer it, so that repeated blocks in an
			// unchanged buffer still yield the sequential match stream 1..M.
			next := uint32(1)
			if len(matches) > 0 {
				next = matches[len(matches)-1] + 1
			}
			if next != matchIndex && int(next) <= blockCount && fingerprint.Blocks[next-1] == fingerprint.Blocks[matchIndex-1] {
				matchIndex = next
			}
			if len(literal) > 0 {
				records = append(records, PatchRecord{Anchor: anchor, Literal: literal})
				bytesSent += uint64(len(literal))
				literal = nil
			}
			matches = append(matches, matchIndex)
			anchor = uint32(len(matches))
			bytesMatched += uint64(blockSize)
			i += int(blockSize)
			haveState = false
		} else {
			literal = append(literal, source[i])
			if w == blockSize && i+int(blockSize) < len(source) {
				state = state.roll(source[i], source[i+int(blockSize)])
				haveState = true
			} else {
				haveState = false
			}
			i++
		}

		if uint64(i)-lastProgressCursor > progressByteMultiple*uint64(blockSize) {
			lastProgressCursor = uint64(i)
			// A match on the short final window advances i past the end of
			// source; report at most the whole source as processed.
			processed := uint64(i)
			if processed > totalBytes {
				processed = totalBytes
			}
			resolved.progress(ProgressEvent{
				OperationID:    operationID,
				Phase:          PhasePatch,
				BytesProcessed: processed,
				TotalBytes:     totalBytes,
				Percent:        100 * float64(processed) / float64(len(source)),
				MatchesFound:   uint64(len(matches)),
				PatchesCreated: uint64(len(records)),
				Stats: PatchStats{
					BytesProcessed: processed,
					MatchesFound:   uint64(len(matches)),
					BytesMatched:   bytesMatched,
					BytesSent:      bytesSent,
				},
			})
		}
	}

	if len(literal) > 0 {
		records = append(records, PatchRecord{Anchor: anchor, Literal: literal})
		bytesSent += uint64(len(literal))
	}

	resolved.progress(ProgressEvent{
		OperationID:    operationID,
		Phase:          PhasePatch,
		BytesProcessed: totalBytes,
		TotalBytes:     totalBytes,
		Percent:        100,
		MatchesFound:   uint64(len(matches)),
		PatchesCreated: uint64(len(records)),
		Stats: PatchStats{
			BytesProcessed: totalBytes,
			MatchesFound:   uint64(len(matches)),
			BytesMatched:   bytesMatched,
			BytesSent:      bytesSent,
		},
	})

	return &PatchDocument{BlockSize: blockSize, Matches: matches, Records: records}, nil
}

// isIdentityPatch reports whether a patch document represents "no changes"
// relative to a destination with the given block count: no literal
// records and a strictly sequential 1..M match stream. It is used by
// ApplyPatch's fast path and exercised directly by tests to pin down the
// guard against reordered full-file blocks.
func isIdentityPatch(p *PatchDocument, destinationBlockCount int) bool {
	if len(p.Records) != 0 {
		return false
	}
	if len(p.Matches) != destinationBlockCount {
		return false
	}
	for i, m := range p.Matches {
		if m != uint32(i+1) {
			return false
		}
	}
	return true
}
