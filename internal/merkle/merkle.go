// Package merkle implements the reserve-attestation tree: root construction
// over an ordered leaf set, inclusion-proof verification, and the canonical
// leaf encoding for reserve deposits.
//
// The byte layout is an interoperability boundary. Roots published by the
// issuer's off-chain tooling and proofs checked here must agree bit for bit,
// so the hash (SHA-256), the concatenation orders, and the little-endian
// integer encodings are all fixed.
package merkle

import (
	"crypto/sha256"
	"encoding/binary"

	dErrors "custos/pkg/domain-errors"
)

// HashSize is the width of every node in the tree.
const HashSize = sha256.Size

// Side says where a proof sibling sits relative to the running hash.
type Side uint8

const (
	// SideRight: the sibling is the right input, H(current || sibling).
	SideRight Side = 0
	// SideLeft: the sibling is the left input, H(sibling || current).
	SideLeft Side = 1
)

// Root folds an ordered leaf set into a single commitment.
//
// Rules: an empty set commits to the all-zero hash; a single leaf is its own
// root; otherwise adjacent leaves are paired left to right and an odd
// trailing node is promoted unchanged to the next level (not duplicated).
// The fold is iterative over one level buffer so arbitrarily large leaf sets
// cannot exhaust the stack. Reordering leaves changes the root.
func Root(leaves [][HashSize]byte) [HashSize]byte {
	if len(leaves) == 0 {
		return [HashSize]byte{}
	}

	level := make([][HashSize]byte, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		n := 0
		for i := 0; i+1 < len(level); i += 2 {
			level[n] = hashPair(level[i], level[i+1])
			n++
		}
		if len(level)%2 == 1 {
			level[n] = level[len(level)-1]
			n++
		}
		level = level[:n]
	}
	return level[0]
}

// VerifyProof replays an inclusion proof against a root.
//
// sides carries one indicator per proof step. A length mismatch between
// proof and sides is a malformed proof and verifies false; it is not an
// error, because verification is a pure query.
func VerifyProof(proof [][HashSize]byte, root, leaf [HashSize]byte, sides []Side) bool {
	if len(proof) != len(sides) {
		return false
	}

	current := leaf
	for i, sibling := range proof {
		switch sides[i] {
		case SideRight:
			current = hashPair(current, sibling)
		case SideLeft:
			current = hashPair(sibling, current)
		default:
			return false
		}
	}
	return current == root
}

// Leaf builds the canonical leaf hash for one reserve deposit:
// SHA-256 over the UTF-8 bytes of depositID, then the 8 little-endian bytes
// of amount, then the 8 little-endian bytes of timestamp.
func Leaf(depositID string, amount uint64, timestamp int64) [HashSize]byte {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], amount)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(timestamp))

	h := sha256.New()
	h.Write([]byte(depositID))
	h.Write(buf[:])

	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Proof derives the inclusion proof for leaves[index] by walking the same
// level buffer Root folds over. A node promoted from an odd level
// contributes no proof step, so proofs over the same tree can differ in
// length. The result feeds VerifyProof directly.
func Proof(leaves [][HashSize]byte, index int) ([][HashSize]byte, []Side, error) {
	if index < 0 || index >= len(leaves) {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "leaf index out of range")
	}

	level := make([][HashSize]byte, len(leaves))
	copy(level, leaves)

	var proof [][HashSize]byte
	var sides []Side
	pos := index

	for len(level) > 1 {
		if pos%2 == 0 {
			if pos+1 < len(level) {
				proof = append(proof, level[pos+1])
				sides = append(sides, SideRight)
			}
			// Odd trailing node: promoted unchanged, no step.
		} else {
			proof = append(proof, level[pos-1])
			sides = append(sides, SideLeft)
		}

		n := 0
		for i := 0; i+1 < len(level); i += 2 {
			level[n] = hashPair(level[i], level[i+1])
			n++
		}
		if len(level)%2 == 1 {
			level[n] = level[len(level)-1]
			n++
		}
		level = level[:n]
		pos /= 2
	}

	return proof, sides, nil
}

func hashPair(left, right [HashSize]byte) [HashSize]byte {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])

	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}
