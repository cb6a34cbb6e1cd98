// Package store holds the on-disk layouts used while computing and serving a
// path matrix: per-origin scratch rows, the merged pair store, the compacted
// final artifact and its reader.
package store

import "math"

// PairIndex returns the canonical slot index of the unordered pair {i, j}.
// i and j must differ.
func PairIndex(i, j uint32) uint64 {
	lo, hi := uint64(i), uint64(j)
	if lo > hi {
		lo, hi = hi, lo
	}
	return hi*(hi-1)/2 + lo
}

// PairFromIndex inverts PairIndex, returning (lo, hi) with lo < hi.
func PairFromIndex(k uint64) (lo, hi uint32) {
	// Largest h with h(h-1)/2 <= k, found by a float estimate and corrected.
	h := uint64((1 + math.Sqrt(float64(1+8*k))) / 2)
	for h*(h-1)/2 > k {
		h--
	}
	for (h+1)*h/2 <= k {
		h++
	}
	return uint32(k - h*(h-1)/2), uint32(h)
}

// PairCount returns the number of unordered pairs over n vertices.
func PairCount(n uint32) uint64 {
	return uint64(n) * (uint64(n) - 1) / 2
}

// SlotSize is the byte size of a fixed path slot for hop bound d: a float64
// weight followed by d vertex words.
func SlotSize(d int) int {
	return 8 + 4*d
}

// forEachPair calls fn for every pair lo < hi < n in ascending PairIndex
// order, stopping at the first error.
func forEachPair(n uint32, fn func(k uint64, lo, hi uint32) error) error {
	k := uint64(0)
	for hi := uint32(1); hi < n; hi++ {
		for lo := uint32(0); lo < hi; lo++ {
			if err := fn(k, lo, hi); err != nil {
				return err
			}
			k++
		}
	}
	return nil
}
