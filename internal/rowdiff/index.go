package rowdiff

import "slices"

const (
	hashMask48 = 0xFFFFFFFFFFFF
	bins       = 1 << 16
)

// Index is a compact set of 48-bit fingerprints. The top 16 bits select a
// bin and the low 32 bits are kept sorted inside it, so each entry costs four
// bytes.
type Index struct {
	// off has bins+1 entries; off[i]..off[i+1] bounds bin i in data.
	off  []int
	data []uint32
}

// NewIndex builds an Index from fingerprints. Duplicates are kept.
func NewIndex(hashes []uint64) *Index {
	counts := make([]int, bins)
	for _, h := range hashes {
		counts[uint16((h&hashMask48)>>32)]++
	}
	off := make([]int, bins+1)
	total := 0
	for i := 0; i < bins; i++ {
		off[i] = total
		total += counts[i]
	}
	off[bins] = total

	data := make([]uint32, total)
	cursor := make([]int, bins)
	copy(cursor, off[:bins])
	for _, h := range hashes {
		h &= hashMask48
		top := uint16(h >> 32)
		data[cursor[top]] = uint32(h)
		cursor[top]++
	}
	for i := 0; i < bins; i++ {
		if off[i+1]-off[i] > 1 {
			slices.Sort(data[off[i]:off[i+1]])
		}
	}
	return &Index{off: off, data: data}
}

// Contains reports whether h was added, comparing its low 48 bits.
func (idx *Index) Contains(h uint64) bool {
	h &= hashMask48
	top := int(h >> 32)
	bin := idx.data[idx.off[top]:idx.off[top+1]]
	_, ok := slices.BinarySearch(bin, uint32(h))
	return ok
}

// Len is the number of fingerprints in the index.
func (idx *Index) Len() int { return len(idx.data) }
