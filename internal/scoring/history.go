package scoring

// history is a fixed-capacity ring buffer of score values. Once full, pushing
// a new value evicts the oldest.
type history struct {
	buf  []float64
	head int // index of the oldest value
	size int
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = 1
	}
	return &history{buf: make([]float64, capacity)}
}

func (h *history) push(v float64) {
	if h.size < len(h.buf) {
		h.buf[(h.head+h.size)%len(h.buf)] = v
		h.size++
		return
	}
	h.buf[h.head] = v
	h.head = (h.head + 1) % len(h.buf)
}

func (h *history) len() int {
	return h.size
}

// values returns the buffered values oldest-first as a fresh slice.
func (h *history) values() []float64 {
	out := make([]float64, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

func (h *history) mean() float64 {
	if h.size == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < h.size; i++ {
		sum += h.buf[(h.head+i)%len(h.buf)]
	}
	return sum / float64(h.size)
}

func (h *history) reset() {
	h.head = 0
	h.size = 0
}
