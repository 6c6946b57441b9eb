package analysis

// Triple holds a per-channel statistic for the left channel, right
// channel and the mono downmix.
type Triple struct {
	Left  float64
	Right float64
	Mono  float64
}

// FeatureFrame is the set of features computed from one audio batch.
// It is immutable once produced: sources publish frames by value and
// readers never mutate them.
type FeatureFrame struct {
	// AverageAmplitude is the median absolute amplitude per channel.
	// Median rather than mean so a single transient spike does not
	// dominate the value.
	AverageAmplitude Triple

	// StandardDeviation per channel, a rough loudness/energy measure.
	StandardDeviation Triple

	// FFT holds the scaled magnitudes matched against the musical
	// note table, concatenated per channel then per band. Its length
	// is fixed by the band configuration.
	FFT []float32
}

// Batch is a fixed-length window of stereo samples handed to the
// extractor. Both channels always hold exactly the configured batch
// size; the owning source rolls the contents in place each step.
type Batch struct {
	Left  []float32
	Right []float32
}

// Size returns the per-channel sample count.
func (b *Batch) Size() int {
	return len(b.Left)
}
