package delta

import (
	"strconv"

	"github.com/google/uuid"
)

// progressBlockInterval is the number of blocks between progress events
// during fingerprint construction.
const progressBlockInterval = 100

// belowRecommendedBlockSize is the block size below which the fingerprint
// builder warns that matching quality may suffer on larger buffers.
const belowRecommendedBlockSize = 256

// belowRecommendedMinLength is the buffer length above which the
// below-recommended-block-size warning applies.
const belowRecommendedMinLength = 1000

// BuildFingerprint walks data in fixed-size, non-overlapping blocks and
// produces a FingerprintDocument describing it: the block size, and for
// each block, its weak checksum and strong digest.
//
// If blockSize is larger than len(data) and data is non-empty, the
// effective block size is silently clamped to max(1, len(data)/2) and a
// diagnostic is emitted through any attached DiagnosticFunc; this does not
// abort the operation. An empty data buffer produces a document with zero
// blocks and a zero block size for any valid requested block size; an
// invalid block size is rejected even when data is empty.
func (e *Engine) BuildFingerprint(data []byte, blockSize uint32, opts ...Option) (*FingerprintDocument, error) {
	resolved := resolveOptions(opts)
	operationID := uuid.New()

	if blockSize < 1 || uint64(blockSize) > maxBlockSize {
		return nil, invalidBlockSize(int64(blockSize))
	}

	effectiveBlockSize := blockSize
	if len(data) > 0 && uint64(effectiveBlockSize) > uint64(len(data)) {
		clamped := len(data) / 2
		if clamped < 1 {
			clamped = 1
		}
		effectiveBlockSize = uint32(clamped)
		resolved.diagnose(operationID, "block size exceeds buffer length; clamped to "+strconv.Itoa(clamped))
	} else if effectiveBlockSize < belowRecommendedBlockSize && len(data) > belowRecommendedMinLength {
		resolved.diagnose(operationID, "block size is below the recommended minimum of "+strconv.Itoa(belowRecommendedBlockSize)+" bytes")
	}

	if len(data) == 0 {
		return &FingerprintDocument{}, nil
	}

	totalBlocks := uint64((len(data) + int(effectiveBlockSize) - 1) / int(effectiveBlockSize))
	blocks := make([]BlockFingerprint, 0, totalBlocks)

	for i := uint64(0); i < totalBlocks; i++ {
		if resolved.cancelled() {
			return nil, errCancelled
		}

		start := i * uint64(effectiveBlockSize)
		end := start + uint64(effectiveBlockSize)
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		block := data[start:end]

		weak := computeWeakChecksum(block).value()
		strong, err := strongDigest(resolved.strongHasher, block)
		if err != nil {
			return nil, err
		}

		blocks = append(blocks, BlockFingerprint{Weak: weak, Strong: strong})

		processed := i + 1
		if processed%progressBlockInterval == 0 || processed == totalBlocks {
			resolved.progress(ProgressEvent{
				OperationID:     operationID,
				Phase:           PhaseFingerprint,
				BlocksProcessed: processed,
				TotalBlocks:     totalBlocks,
				Percent:         100 * float64(processed) / float64(totalBlocks),
			})
		}
	}

	return &FingerprintDocument{BlockSize: effectiveBlockSize, Blocks: blocks}, nil
}
