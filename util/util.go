package util

import (
	"log"
	"math"

	"golang.org/x/exp/constraints"
)

// Debug is the highest level DPrintf prints.
var Debug uint64 = 1

func DPrintf(level uint64, format string, a ...interface{}) {
	if level <= Debug {
		log.Printf(format, a...)
	}
}

func RoundUp(n uint64, sz uint64) uint64 {
	return (n + sz - 1) / sz
}

func Min[T constraints.Ordered](n T, m T) T {
	if n < m {
		return n
	} else {
		return m
	}
}

func Max[T constraints.Ordered](n T, m T) T {
	if n > m {
		return n
	} else {
		return m
	}
}

func SumOverflows(n uint64, m uint64) bool {
	return n+m < n
}

// SqrtApprox returns floor(sqrt(n)), good enough for sizing decisions.
func SqrtApprox(n uint64) uint64 {
	if n < 2 {
		return n
	}
	r := uint64(math.Sqrt(float64(n)))
	// float rounding can be off by one either way near 2^53 and above;
	// compare by division so nothing overflows
	for r > n/r {
		r--
	}
	for r+1 <= n/(r+1) {
		r++
	}
	return r
}

func CloneByteSlice(s []byte) []byte {
	s2 := make([]byte, len(s))
	copy(s2, s)
	return s2
}
