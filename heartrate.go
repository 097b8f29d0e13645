package pulseox

import "go.uber.org/zap"

// hrEstimator filters inter-beat intervals for plausibility and keeps a
// moving average of the accepted ones. An implausible interval is discarded
// and logged; it never perturbs the existing average.
type hrEstimator struct {
	minIBI float64 // ms, from MaxBPM
	maxIBI float64 // ms, from MinBPM
	avg    *movingAverage
	log    *zap.Logger

	rejected uint64
}

func newHREstimator(minBPM, maxBPM float64, window int, log *zap.Logger) *hrEstimator {
	return &hrEstimator{
		minIBI: 60000 / maxBPM,
		maxIBI: 60000 / minBPM,
		avg:    newMovingAverage(window),
		log:    log,
	}
}

// accept validates one inter-beat interval and folds it into the estimate.
// It reports whether the interval was accepted.
func (h *hrEstimator) accept(ibiMS float64) bool {
	if ibiMS < h.minIBI || ibiMS > h.maxIBI {
		h.rejected++
		h.log.Debug("rejected inter-beat interval",
			zap.Float64("ibi_ms", ibiMS),
			zap.Uint64("total_rejected", h.rejected),
		)
		return false
	}

	h.avg.add(ibiMS)

	return true
}

// bpm returns the smoothed heart rate. It is invalid until at least one
// interval, that is two beats, has been accepted.
func (h *hrEstimator) bpm() (float64, bool) {
	if !h.avg.valid() {
		return 0, false
	}
	return 60000 / h.avg.mean(), true
}

func (h *hrEstimator) reset() {
	h.avg.reset()
}
