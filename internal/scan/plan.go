package scan

import "fmt"

// Plan describes a sweep: a strictly ascending run of center frequencies
// from Start to Stop inclusive in increments of Step.
type Plan struct {
	Start float64 // Hz
	Stop  float64 // Hz
	Step  float64 // Hz
}

// Validate checks the sweep bounds.
func (p Plan) Validate() error {
	if p.Step <= 0 {
		return fmt.Errorf("sweep step must be positive, got %f", p.Step)
	}
	if p.Stop < p.Start {
		return fmt.Errorf("sweep stop %f below start %f", p.Stop, p.Start)
	}
	return nil
}

// Frequencies expands the plan into its full frequency sequence. The
// endpoint test runs against Stop plus half a step so that accumulated
// floating-point error over many increments cannot drop the final
// frequency.
func (p Plan) Frequencies() []float64 {
	var freqs []float64
	for f := p.Start; f <= p.Stop+p.Step/2; f += p.Step {
		freqs = append(freqs, f)
	}
	return freqs
}
