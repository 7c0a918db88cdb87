package cache

// scatterWriter lets callers write a logically-contiguous stream of
// bytes across an ordered list of fixed-size buffers (the caller-provided
// output buffers for a Read), advancing a single running cursor. It's the
// Go analogue of the original's FileVolatileSlice-based write_from /
// ZeroCopyWriter path.
type scatterWriter struct {
	buffers [][]byte
	bufIdx  int
	bufOff  int
	written int
}

func newScatterWriter(buffers [][]byte) *scatterWriter {
	return &scatterWriter{buffers: buffers}
}

// Write copies p into the buffer list starting at the writer's current
// cursor, advancing past buffer boundaries as needed.
func (w *scatterWriter) Write(p []byte) (int, error) {
	remaining := p
	for len(remaining) > 0 && w.bufIdx < len(w.buffers) {
		dst := w.buffers[w.bufIdx][w.bufOff:]
		n := copy(dst, remaining)
		remaining = remaining[n:]
		w.bufOff += n
		w.written += n
		if w.bufOff == len(w.buffers[w.bufIdx]) {
			w.bufIdx++
			w.bufOff = 0
		}
	}
	return len(p) - len(remaining), nil
}

const zeroFillBurst = 4096

var zeros = make([]byte, zeroFillBurst)

// WriteZeros writes n zero bytes through the scatter writer in bursts of
// at most 4 KiB, matching spec.md §4.D step 5's fill-from-zero helper.
func (w *scatterWriter) WriteZeros(n int) (int, error) {
	total := 0
	for n > 0 {
		burst := n
		if burst > zeroFillBurst {
			burst = zeroFillBurst
		}
		wn, err := w.Write(zeros[:burst])
		total += wn
		if err != nil {
			return total, err
		}
		n -= burst
	}
	return total, nil
}
