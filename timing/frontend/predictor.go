// Package frontend provides the fetch and decode collaborator of the
// out-of-order core: a bimodal direction predictor with a branch target
// buffer, a return-address stack and the fetch queue feeding dispatch.
package frontend

// PredictorConfig holds configuration for the branch predictor.
type PredictorConfig struct {
	// BHTSize is the number of entries in the Branch History Table.
	// Must be a power of 2. Default is 1024.
	BHTSize uint32 `json:"bht_size" yaml:"bht_size"`
	// BTBSize is the number of entries in the Branch Target Buffer.
	// Must be a power of 2. Default is 256.
	BTBSize uint32 `json:"btb_size" yaml:"btb_size"`
	// RASDepth is the number of return-address stack entries.
	RASDepth int `json:"ras_depth" yaml:"ras_depth"`
}

// DefaultPredictorConfig returns a default configuration.
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		BHTSize:  1024,
		BTBSize:  256,
		RASDepth: 16,
	}
}

// PredictorStats holds statistics for the branch predictor.
type PredictorStats struct {
	// Predictions is the total number of direction predictions made.
	Predictions uint64
	// Correct is the number of resolved branches whose direction matched.
	Correct uint64
	// Mispredictions is the number of resolved branches whose direction
	// did not match.
	Mispredictions uint64
	BTBHits        uint64
	BTBMisses      uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s PredictorStats) Accuracy() float64 {
	n := s.Correct + s.Mispredictions
	if n == 0 {
		return 0
	}
	return float64(s.Correct) / float64(n) * 100
}

// MispredictionRate returns the misprediction rate as a percentage.
func (s PredictorStats) MispredictionRate() float64 {
	n := s.Correct + s.Mispredictions
	if n == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(n) * 100
}

// BTBHitRate returns the BTB hit rate as a percentage.
func (s PredictorStats) BTBHitRate() float64 {
	total := s.BTBHits + s.BTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(total) * 100
}

// Prediction represents a branch prediction result.
type Prediction struct {
	Taken bool
	// Target is the predicted target address (if known from the BTB).
	Target      uint32
	TargetKnown bool
}

// Predictor implements a 2-bit saturating counter (bimodal) predictor
// with a Branch Target Buffer (BTB).
type Predictor struct {
	// 2-bit counters: 0 strongly not taken .. 3 strongly taken.
	bht []uint8

	btb      []btbEntry
	btbValid []bool

	bhtSize uint32
	btbSize uint32

	stats PredictorStats
}

type btbEntry struct {
	pc     uint32
	target uint32
}

// NewPredictor creates a branch predictor with the given configuration.
func NewPredictor(config PredictorConfig) *Predictor {
	bhtSize := config.BHTSize
	btbSize := config.BTBSize
	if bhtSize == 0 {
		bhtSize = 1024
	}
	if btbSize == 0 {
		btbSize = 256
	}

	bp := &Predictor{
		bht:      make([]uint8, bhtSize),
		btb:      make([]btbEntry, btbSize),
		btbValid: make([]bool, btbSize),
		bhtSize:  bhtSize,
		btbSize:  btbSize,
	}
	bp.Reset()
	return bp
}

func (bp *Predictor) bhtIndex(pc uint32) uint32 {
	return (pc >> 2) & (bp.bhtSize - 1)
}

func (bp *Predictor) btbIndex(pc uint32) uint32 {
	return (pc >> 2) & (bp.btbSize - 1)
}

// Predict looks up the direction counter and the BTB for pc.
func (bp *Predictor) Predict(pc uint32) Prediction {
	pred := Prediction{Taken: bp.bht[bp.bhtIndex(pc)] >= 2}

	idx := bp.btbIndex(pc)
	if bp.btbValid[idx] && bp.btb[idx].pc == pc {
		pred.Target = bp.btb[idx].target
		pred.TargetKnown = true
		bp.stats.BTBHits++
	} else {
		bp.stats.BTBMisses++
	}

	bp.stats.Predictions++
	return pred
}

// Update trains the predictor with a resolved outcome.
func (bp *Predictor) Update(pc uint32, taken bool, target uint32) {
	idx := bp.bhtIndex(pc)
	counter := bp.bht[idx]

	if (counter >= 2) == taken {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}

	switch {
	case taken && counter < 3:
		bp.bht[idx] = counter + 1
	case !taken && counter > 0:
		bp.bht[idx] = counter - 1
	}

	if taken {
		b := bp.btbIndex(pc)
		bp.btb[b] = btbEntry{pc: pc, target: target}
		bp.btbValid[b] = true
	}
}

// Stats returns the predictor statistics.
func (bp *Predictor) Stats() PredictorStats {
	return bp.stats
}

// Reset sets every counter to weakly taken and clears the BTB.
func (bp *Predictor) Reset() {
	for i := range bp.bht {
		bp.bht[i] = 2
	}
	clear(bp.btbValid)
	bp.stats = PredictorStats{}
}
