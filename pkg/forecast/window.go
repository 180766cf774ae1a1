package forecast

import "fmt"

// Window is a fixed-length ring of the most recent observations
type Window struct {
	values []float64
	start  int
}

// NewWindow takes the last size values of seed. Seed must hold at least size values.
func NewWindow(seed []float64, size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	if len(seed) < size {
		return nil, fmt.Errorf("need %d observations, got %d", size, len(seed))
	}
	values := make([]float64, size)
	copy(values, seed[len(seed)-size:])
	return &Window{values: values}, nil
}

// Push appends v and evicts the oldest observation
func (w *Window) Push(v float64) {
	w.values[w.start] = v
	w.start = (w.start + 1) % len(w.values)
}

// Values returns a copy ordered oldest to newest
func (w *Window) Values() []float64 {
	out := make([]float64, 0, len(w.values))
	out = append(out, w.values[w.start:]...)
	return append(out, w.values[:w.start]...)
}

// Len is the fixed window size
func (w *Window) Len() int {
	return len(w.values)
}
