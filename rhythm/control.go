package rhythm

// AudioControl is the sole externally visible product of the rhythm
// core, recomputed once per frame. Consumers read the latest record
// only; it carries no identity across frames.
type AudioControl struct {
	// Energy is the smoothed overall audio level.
	Energy float64 `json:"energy"`
	// Pulse is the fused transient strength, emphasized near the
	// tracked beat phase.
	Pulse float64 `json:"pulse"`
	// Phase is the position in the current beat cycle, in [0, 1),
	// 0 meaning on the beat.
	Phase float64 `json:"phase"`
	// RhythmStrength reports how much the tempo and beat estimates
	// deserve trust; consumers below a threshold of their choosing
	// should fall back to ambient behavior.
	RhythmStrength float64 `json:"rhythm_strength"`
}
