package delta

// blockRange computes the byte range of a destination buffer addressed by
// a 1-based block index: block j covers
// destination[(j-1)*blockSize : (j-1)*blockSize+min(blockSize, remaining)].
// It returns a CorruptPatch error if the index falls outside the range of
// blocks that destination actually contains.
func blockRange(destination []byte, blockSize uint32, index uint32) ([]byte, error) {
	blockCount := destinationBlockCount(len(destination), blockSize)
	if index < 1 || index > uint32(blockCount) {
		return nil, corruptPatchf("matched block index %d outside valid range 1..%d", index, blockCount)
	}
	start := uint64(index-1) * uint64(blockSize)
	end := start + uint64(blockSize)
	if end > uint64(len(destination)) {
		end = uint64(len(destination))
	}
	return destination[start:end], nil
}

// destinationBlockCount computes ceil(length/blockSize), treating a zero
// block size as describing zero blocks (an empty destination).
func destinationBlockCount(length int, blockSize uint32) int {
	if blockSize == 0 {
		return 0
	}
	return (length + int(blockSize) - 1) / int(blockSize)
}

// ApplyPatch reads a patch document and a destination buffer and replays
// them into a freshly allocated reconstructed buffer. It recognizes the
// "no changes" fast path (a patch with no literal records whose match
// stream is exactly the sequential identity 1..M) and otherwise walks
// patch records in order, emitting the next record.Anchor entries of the
// match stream before each literal run. Anchoring by stream position
// rather than by matched-block value keeps this correct even when the
// match stream is not ascending, as after a block reorder.
//
// For performance reasons this method does not independently verify every
// invariant of the supplied patch document; callers that receive a patch
// document from an untrusted source should call its EnsureValid method
// first.
func (e *Engine) ApplyPatch(patch *PatchDocument, destination []byte, opts ...Option) ([]byte, error) {
	resolved := resolveOptions(opts)

	if patch == nil {
		return nil, invalidInputf("nil patch document")
	}

	blockCount := destinationBlockCount(len(destination), patch.BlockSize)
	if isIdentityPatch(patch, blockCount) {
		result := make([]byte, len(destination))
		copy(result, destination)
		return result, nil
	}

	var output []byte
	matchCursor := 0

	emitBlock := func(index uint32) error {
		block, err := blockRange(destination, patch.BlockSize, index)
		if err != nil {
			return err
		}
		output = append(output, block...)
		idx := index
		resolved.blockApplied(BlockAppliedEvent{
			BlockIndex: &idx,
			Source:     BlockSourceMatched,
			Size:       len(block),
		})
		return nil
	}

	emitLiteral := func(literal []byte) {
		output = append(output, literal...)
		resolved.blockApplied(BlockAppliedEvent{
			Source: BlockSourcePatch,
			Size:   len(literal),
		})
	}

	for _, record := range patch.Records {
		if resolved.cancelled() {
			return nil, errCancelled
		}
		for matchCursor < len(patch.Matches) && matchCursor < int(record.Anchor) {
			if err := emitBlock(patch.Matches[matchCursor]); err != nil {
				return nil, err
			}
			matchCursor++
		}
		emitLiteral(record.Literal)
	}

	for matchCursor < len(patch.Matches) {
		if resolved.cancelled() {
			return nil, errCancelled
		}
		if err := emitBlock(patch.Matches[matchCursor]); err != nil {
			return nil, err
		}
		matchCursor++
	}

	if output == nil {
		output = []byte{}
	}
	return output, nil
}
