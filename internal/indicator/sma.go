package indicator

// Window holds the most recent closes for the simple moving average.
// It uses a preallocated circular buffer; Mean sums oldest to newest so the
// result only depends on the window contents, never on how it was filled.
type Window struct {
	buf   []float64
	idx   int // next write position
	count int
}

// NewWindow creates a window holding up to size values.
func NewWindow(size int) *Window {
	return &Window{buf: make([]float64, size)}
}

// Push adds a value, evicting the oldest once the window is full.
func (w *Window) Push(v float64) {
	w.buf[w.idx] = v
	w.idx = (w.idx + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

// Mean returns the average of the held values, or 0 when empty.
func (w *Window) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	start := (w.idx - w.count + len(w.buf)) % len(w.buf)
	sum := 0.0
	for k := 0; k < w.count; k++ {
		sum += w.buf[(start+k)%len(w.buf)]
	}
	return sum / float64(w.count)
}
