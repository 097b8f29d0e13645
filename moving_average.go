package pulseox

// movingAverage keeps a windowed mean over the last n values.
type movingAverage struct {
	window []float64
	idx    int
	count  int
	sum    float64
}

func newMovingAverage(n int) *movingAverage {
	return &movingAverage{window: make([]float64, n)}
}

func (m *movingAverage) add(v float64) {
	if m.count == len(m.window) {
		m.sum -= m.window[m.idx]
	} else {
		m.count++
	}
	m.window[m.idx] = v
	m.sum += v
	m.idx = (m.idx + 1) % len(m.window)
}

func (m *movingAverage) mean() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

func (m *movingAverage) valid() bool {
	return m.count > 0
}

func (m *movingAverage) reset() {
	for i := range m.window {
		m.window[i] = 0
	}
	m.idx = 0
	m.count = 0
	m.sum = 0
}
