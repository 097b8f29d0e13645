package pulseox

type beatState int

const (
	// stateBelowThr: signal under the dynamic threshold, waiting for an
	// upward crossing.
	stateBelowThr beatState = iota
	// stateAboveThr: signal over the threshold, waiting for the local
	// maximum that marks the beat instant.
	stateAboveThr
	// stateRefractory: post-beat, crossings ignored until the minimum
	// plausible inter-beat interval has elapsed.
	stateRefractory
)

// beatEvent is a detected pulse. The sample index doubles as the event clock:
// multiplied by the sample period it gives the time since activation.
type beatEvent struct {
	sample int
	// ibiMS is the time since the previous beat in milliseconds, or 0 for
	// the first beat after a reset.
	ibiMS float64
}

// beatDetector finds periodic pulses in the IR AC stream. The threshold
// adapts per beat to a fraction of the recent peak-to-peak amplitude, because
// pulse amplitude drifts with contact pressure.
type beatDetector struct {
	fraction     float64
	minAmplitude float64
	refractory   int // samples
	stale        int // samples, longest plausible inter-beat interval
	periodMS     float64

	state beatState
	prev  float64

	peak    float64
	peakIdx int

	winMax, winMin float64
	p2p            float64 // recent peak-to-peak, adapted per beat

	lastBeat        int
	refractoryUntil int
	anchor          int // last beat or restart, for staleness
	n               int
}

func newBeatDetector(sampleRate, fraction, minAmplitude, minBPM, maxBPM float64) *beatDetector {
	return &beatDetector{
		fraction:     fraction,
		minAmplitude: minAmplitude,
		refractory:   int(sampleRate * 60 / maxBPM),
		stale:        int(sampleRate * 60 / minBPM),
		periodMS:     1000 / sampleRate,
		lastBeat:     -1,
	}
}

// step feeds one AC sample to the detector. It returns a beatEvent and true
// when this sample completes a pulse.
func (b *beatDetector) step(ac float64) (beatEvent, bool) {
	idx := b.n
	b.n++

	if idx-b.anchor > b.stale {
		// No beat within the longest plausible interval: the adapted
		// amplitude no longer describes the signal and would hold the
		// threshold above it indefinitely. Restart detection from the
		// samples ahead.
		b.p2p = 0
		b.winMax, b.winMin = 0, 0
		b.lastBeat = -1
		b.state = stateBelowThr
		b.anchor = idx
	}

	if ac > b.winMax {
		b.winMax = ac
	}
	if ac < b.winMin {
		b.winMin = ac
	}

	var ev beatEvent
	fired := false

	switch b.state {
	case stateBelowThr:
		thr := b.threshold()
		if b.prev < thr && ac >= thr && b.winMax-b.winMin >= b.minAmplitude {
			b.state = stateAboveThr
			b.peak = ac
			b.peakIdx = idx
		}

	case stateAboveThr:
		if ac > b.peak {
			b.peak = ac
			b.peakIdx = idx
		} else if ac < b.peak {
			// Local maximum passed: the previous peak is the beat
			// instant.
			ev = b.fire()
			fired = true
			b.state = stateRefractory
			b.refractoryUntil = b.peakIdx + b.refractory
		}

	case stateRefractory:
		if idx >= b.refractoryUntil {
			b.state = stateBelowThr
		}
	}

	b.prev = ac

	return ev, fired
}

// threshold is the crossing level for the next pulse. Until a first beat has
// measured the peak-to-peak amplitude, the extremes seen so far stand in for
// it.
func (b *beatDetector) threshold() float64 {
	p2p := b.p2p
	if p2p == 0 {
		p2p = b.winMax - b.winMin
	}
	return b.fraction * p2p
}

func (b *beatDetector) fire() beatEvent {
	p2p := b.winMax - b.winMin
	if b.p2p == 0 {
		b.p2p = p2p
	} else {
		b.p2p += (p2p - b.p2p) / 4
	}
	b.winMax = 0
	b.winMin = 0

	ev := beatEvent{sample: b.peakIdx}
	if b.lastBeat >= 0 {
		ev.ibiMS = float64(b.peakIdx-b.lastBeat) * b.periodMS
	}
	b.lastBeat = b.peakIdx
	b.anchor = b.peakIdx

	return ev
}
