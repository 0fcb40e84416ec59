package lol

import (
	"encoding/binary"

	farm "github.com/dgryski/go-farm"
)

// This file implements the node key -> compact ID index: an open-addressing
// linear-probing table bucketed by the farmhash of the packed key. The table
// stores only int32 slots (compact ID + 1, zero meaning empty), so it adds no
// pointers for the GC to scan and is cheap to rebuild after loading a
// persisted graph.

const indexLoadFactor = 2

type nodeIndex struct {
	mask  uint64
	slots []int32 // compact ID + 1; 0 = empty
}

// packedKeySize is the number of bytes hashNodeKey feeds to farmhash:
// layer tag, donor ID, ten 16-bit alleles, and the two class key words.
const packedKeySize = 1 + 8 + 20 + 16

func hashNodeKey(k NodeKey) uint64 {
	var buf [packedKeySize]byte
	buf[0] = byte(k.Layer)
	binary.LittleEndian.PutUint64(buf[1:], k.Donor)
	for i, a := range k.Geno {
		binary.LittleEndian.PutUint16(buf[9+2*i:], uint16(a))
	}
	binary.LittleEndian.PutUint64(buf[29:], k.Class.Hi)
	binary.LittleEndian.PutUint64(buf[37:], k.Class.Lo)
	return farm.Hash64(buf[:])
}

// buildNodeIndex indexes keys by their position. The table is sized to the
// next power of two at least indexLoadFactor times the key count, so probe
// chains stay short and lookups always terminate on an empty slot.
func buildNodeIndex(keys []NodeKey) nodeIndex {
	size := 1
	for size < (len(keys)+1)*indexLoadFactor {
		size *= 2
	}
	x := nodeIndex{mask: uint64(size - 1), slots: make([]int32, size)}
	for id, k := range keys {
		slot := hashNodeKey(k) & x.mask
		for x.slots[slot] != 0 {
			slot = (slot + 1) & x.mask
		}
		x.slots[slot] = int32(id) + 1
	}
	return x
}

func (x nodeIndex) lookup(keys []NodeKey, k NodeKey) (int32, bool) {
	if len(x.slots) == 0 {
		return 0, false
	}
	slot := hashNodeKey(k) & x.mask
	for {
		s := x.slots[slot]
		if s == 0 {
			return 0, false
		}
		if id := s - 1; keys[id] == k {
			return id, true
		}
		slot = (slot + 1) & x.mask
	}
}
