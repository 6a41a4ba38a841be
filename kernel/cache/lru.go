// Package cache implements the LRU age bookkeeping for set-associative
// structures (C6) and the split L1-I/L1-D plus unified L2 cache hierarchy
// (C7), grounded on original_source/lru.h and original_source/cache_mng.c.
//
// Two distinct LRU strategies coexist in this simulator: the doubly
// linked list LRU of kernel/tlb (C4) and the age-counter LRU here. They
// are independent implementations of the same replacement discipline.
package cache

// UpdateOnHit applies the update-on-hit primitive to the age array of one
// set: every way younger than way w's current age is aged by one, then w
// becomes the most recently used way (age 0).
func UpdateOnHit(ages []int, w int) {
	a := ages[w]
	for j := range ages {
		if ages[j] < a {
			ages[j]++
		}
	}
	ages[w] = 0
}

// UpdateOnInsert applies update-on-insert: every way whose age is below
// ways is aged by one, then w becomes the most recently used way.
func UpdateOnInsert(ages []int, w int, ways int) {
	for j := range ages {
		if ages[j] < ways {
			ages[j]++
		}
	}
	ages[w] = 0
}
