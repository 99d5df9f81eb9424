package prop

import (
	"math"
	"math/rand"
)

// GenInt returns a generator for int with magnitude guided by size. This is
// the only scalar shape the optimizer's literal-int properties need; the
// teacher's bool/slice generator/shrinker pairs had no caller in this module
// and were dropped along with their local min/max helpers.
func GenInt() Generator[int] {
	return func(r *rand.Rand, size int) int {
		if size <= 0 {
			size = 30
		}
		magnitude := int(math.Pow(2, float64(min(size, 31)))) - 1
		if magnitude <= 0 {
			magnitude = 1
		}
		sign := 1
		if r.Intn(2) == 0 {
			sign = -1
		}
		return sign * r.Intn(magnitude+1)
	}
}

// ShrinkInt reduces magnitude toward zero.
func ShrinkInt() Shrinker[int] {
	return func(v int) []int {
		if v == 0 {
			return nil
		}
		candidates := []int{v / 2, 0}
		if v > 0 {
			candidates = append(candidates, v-1)
		} else {
			candidates = append(candidates, v+1)
		}
		seen := make(map[int]struct{}, len(candidates))
		out := make([]int, 0, len(candidates))
		for _, c := range candidates {
			if _, dup := seen[c]; !dup {
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
		return out
	}
}
