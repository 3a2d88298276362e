package delta

import (
	"crypto/md5"
	"hash"

	"github.com/jzelinskie/whirlpool"
	"golang.org/x/crypto/blake2b"
)

// weakModulus is the modulus used by the weak checksum. This is the
// non-standard Adler value (65536, not the 65521 used by standard
// Adler-32) that the wire contract requires; implementations that use the
// standard Adler-32 modulus will not interoperate.
const weakModulus = 1 << 16

// rollingChecksum is the small, by-value state needed to advance the weak
// checksum one byte at a time without rescanning the window it describes.
// It is never placed on the heap on its own; it is threaded through the
// patch builder's loop as a plain value, in the spirit of rsync's classic
// (r1, r2) rolling-checksum pair.
type rollingChecksum struct {
	// a is the sum of the window's bytes, mod weakModulus.
	a uint32
	// b is the sum of the running a values after each byte, mod
	// weakModulus.
	b uint32
	// length is the number of bytes the window currently covers. It is
	// needed by rollingChecksum.roll because the rolling update's b term
	// depends on the window length, not just its current a/b state.
	length uint32
}

// computeWeakChecksum computes the weak checksum of a window from scratch.
// It is used both for the fingerprint builder (which never rolls) and for
// the patch builder whenever a fresh computation is required (window
// boundaries that don't follow a prior rolled window).
func computeWeakChecksum(window []byte) rollingChecksum {
	var a, b uint32
	for _, c := range window {
		a = (a + uint32(c)) % weakModulus
		b = (b + a) % weakModulus
	}
	return rollingChecksum{a: a, b: b, length: uint32(len(window))}
}

// value combines the (a, b) components into the single 32-bit weak
// checksum value used for bucket lookups and equality comparisons.
func (r rollingChecksum) value() uint32 {
	return (r.b << 16) | r.a
}

// roll advances the window described by r by one byte: outgoing is the
// byte leaving the window at its low end, incoming is the byte entering at
// its high end. The window length is unchanged. All intermediate
// arithmetic is performed in a signed 64-bit accumulator wide enough to
// hold length*255 plus the modulus without overflow before being reduced
// back to a non-negative value mod weakModulus.
func (r rollingChecksum) roll(outgoing, incoming byte) rollingChecksum {
	aPrime := reduceMod(int64(r.a)-int64(outgoing)+int64(incoming), weakModulus)
	bPrime := reduceMod(int64(r.b)-int64(r.length)*int64(outgoing)+int64(aPrime), weakModulus)
	return rollingChecksum{a: uint32(aPrime), b: uint32(bPrime), length: r.length}
}

// reduceMod reduces x modulo m, always returning a value in [0, m).
func reduceMod(x, m int64) int64 {
	x %= m
	if x < 0 {
		x += m
	}
	return x
}

// bucketHash derives the 16-bit match-index bucket key from a weak
// checksum value: the low 16 bits, equivalent to weak mod 65536.
func bucketHash(weak uint32) uint16 {
	return uint16(weak)
}

// StrongHasher constructs a new strong-digest hash.Hash. Implementations
// must produce exactly strongDigestSize (16) bytes of output; the engine
// treats the result as four opaque 32-bit lanes compared for bit-exact
// equality. Both peers in an exchange must agree on the concrete algorithm
// out of band, since the wire format carries no algorithm identifier.
type StrongHasher func() hash.Hash

// MD5StrongHasher is the historical default strong hasher. MD5's 16-byte
// digest already matches the wire contract's fixed 128-bit
// width with no truncation required, which is why it remains the default
// despite being otherwise out of favor.
func MD5StrongHasher() hash.Hash {
	return md5.New()
}

// BLAKE2b128StrongHasher returns a BLAKE2b hasher configured to emit a
// 128-bit digest, offered as a non-legacy alternative to MD5 for callers
// who don't need wire compatibility with older peers. The error from
// blake2b.New is only possible for unsupported output sizes or invalid
// keys; 16 bytes with no key is always valid, so it is never actually
// returned here.
func BLAKE2b128StrongHasher() hash.Hash {
	h, err := blake2b.New(strongDigestSize, nil)
	if err != nil {
		panic(err)
	}
	return h
}

// truncatedHash wraps a hash.Hash whose native digest is wider than the
// wire contract's fixed 128-bit strong-digest width, reporting a truncated
// Size() and Sum() so it can be used anywhere a StrongHasher is expected.
// Truncating a cryptographic digest weakens its collision resistance, but
// the strong digest here only needs to disambiguate weak-checksum
// collisions among a file's own blocks, not resist a deliberate adversary.
type truncatedHash struct {
	hash.Hash
	size int
}

func (t *truncatedHash) Size() int { return t.size }

func (t *truncatedHash) Sum(in []byte) []byte {
	full := t.Hash.Sum(nil)
	return append(in, full[:t.size]...)
}

// WhirlpoolStrongHasher returns a Whirlpool hasher truncated to the wire
// contract's 128-bit strong-digest width, offered as a third alternative
// to MD5 and BLAKE2b-128 for callers that want a hash from a different
// design lineage.
func WhirlpoolStrongHasher() hash.Hash {
	return &truncatedHash{Hash: whirlpool.New(), size: strongDigestSize}
}

// strongDigest computes the strong digest of a block of data using the
// given hasher constructor, returning it as a fixed-size array suitable
// for storage in a BlockFingerprint.
func strongDigest(hasher StrongHasher, data []byte) ([strongDigestSize]byte, error) {
	h := hasher()
	if _, err := h.Write(data); err != nil {
		return [strongDigestSize]byte{}, invalidInputf("unable to hash block: %v", err)
	}
	sum := h.Sum(nil)
	if len(sum) != strongDigestSize {
		return [strongDigestSize]byte{}, invalidInputf("strong hasher produced %d-byte digest, expected %d", len(sum), strongDigestSize)
	}
	var result [strongDigestSize]byte
	copy(result[:], sum)
	return result, nil
}
