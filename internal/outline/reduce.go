package outline

type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int)      { b[i/64] |= 1 << (uint(i) % 64) }
func (b bitset) has(i int) bool { return b[i/64]&(1<<(uint(i)%64)) != 0 }

func (b bitset) or(o bitset) {
	for i := range b {
		b[i] |= o[i]
	}
}

// reduce removes every dependency already implied through another direct
// dependency (transitive reduction). Reachability is memoized per task, so
// the cost is one DFS plus a bitset check per edge pair. Requires a DAG.
func reduce(tree *Tree) error {
	n := tree.Len()
	reach := make([]bitset, n)

	var fill func(i int) bitset
	fill = func(i int) bitset {
		if reach[i] != nil {
			return reach[i]
		}
		r := newBitset(n)
		reach[i] = r
		for _, d := range tree.Tasks[i].Deps {
			r.set(d)
			r.or(fill(d))
		}
		return r
	}
	for i := range tree.Tasks {
		fill(i)
	}

	for _, t := range tree.Tasks {
		if len(t.Deps) < 2 {
			continue
		}
		kept := make([]int, 0, len(t.Deps))
		for _, b := range t.Deps {
			implied := false
			for _, a := range t.Deps {
				if a != b && reach[a].has(b) {
					implied = true
					break
				}
			}
			if !implied {
				kept = append(kept, b)
			}
		}
		t.Deps = kept
	}
	return nil
}
