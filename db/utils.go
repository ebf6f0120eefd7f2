package db

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
)

const (
	TITLE_TYPE_UPDATE = 0x0004000E
	TITLE_ID_LOWMASK  = 0xFFFFFFFF
)

// Get a title ID low and high parts
func splitTitleID(id uint64) (uint32, uint32) {
	return uint32(id & TITLE_ID_LOWMASK), uint32(id >> 32)
}

// uniqueID is the middle 24 bits of a title id.
func uniqueID(id uint64) uint32 {
	low, _ := splitTitleID(id)
	return low >> 8
}

func formatTitleID(id uint64) string {
	return fmt.Sprintf("0x%016X", id)
}

// hashTitleIDs digests the installed id list. The ids are sorted first so
// the digest does not depend on enumeration order.
func hashTitleIDs(ids []uint64) [sha256.Size]byte {
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	buf := make([]byte, 8*len(sorted))
	for i, id := range sorted {
		binary.LittleEndian.PutUint64(buf[i*8:], id)
	}
	return sha256.Sum256(buf)
}
