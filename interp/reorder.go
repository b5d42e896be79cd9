package interp

// reorderBuffer holds pair results that finished ahead of the next index
// the sink is waiting for.
type reorderBuffer struct {
	next    int
	pending map[int]pairResult
}

func newReorderBuffer() *reorderBuffer {
	return &reorderBuffer{pending: make(map[int]pairResult)}
}

// push stores res and returns every result that is now ready, in order.
func (r *reorderBuffer) push(res pairResult) []pairResult {
	r.pending[res.index] = res

	var ready []pairResult
	for {
		next, ok := r.pending[r.next]
		if !ok {
			return ready
		}

		delete(r.pending, r.next)
		ready = append(ready, next)
		r.next++
	}
}

func (r *reorderBuffer) len() int {
	return len(r.pending)
}
