package physics

import "sort"

type pair struct {
	a, b *Body
}

type pairKey struct {
	lo, hi BodyID
}

func keyOf(a, b BodyID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// sweepAndPrune sorts candidates on the X axis and returns overlapping
// pairs that need a narrow phase test.
func sweepAndPrune(bodies []*Body, out []pair) []pair {
	sort.Slice(bodies, func(i, j int) bool {
		return bodies[i].box.min.X() < bodies[j].box.min.X()
	})
	for i, a := range bodies {
		for _, b := range bodies[i+1:] {
			if b.box.min.X() > a.box.max.X() {
				break
			}
			if !needsTest(a, b) || !a.box.overlaps(b.box) {
				continue
			}
			out = append(out, pair{a: a, b: b})
		}
	}
	return out
}

func needsTest(a, b *Body) bool {
	if a.IsStatic() && b.IsStatic() {
		return false
	}
	aIdle := a.IsStatic() || a.sleeping
	bIdle := b.IsStatic() || b.sleeping
	return !(aIdle && bIdle)
}
