package model

// Draw is one set of fitted parameters in scaled units.
type Draw struct {
	K        float64   // base growth rate
	M        float64   // base offset
	Delta    []float64 // rate changes, one per changepoint
	Beta     []float64 // coefficients, one per design column
	SigmaObs float64   // observation noise
}

func (d Draw) clone() Draw {
	out := d
	out.Delta = append([]float64(nil), d.Delta...)
	out.Beta = append([]float64(nil), d.Beta...)
	return out
}

// Params is the immutable result of a fit: M draws, M == 1 for a point
// estimate. Accessors always return copies.
type Params struct {
	draws []Draw
}

// NewParams snapshots draws into a Params value.
func NewParams(draws ...Draw) Params {
	p := Params{draws: make([]Draw, len(draws))}
	for i, d := range draws {
		p.draws[i] = d.clone()
	}
	return p
}

// Len returns the number of draws.
func (p Params) Len() int { return len(p.draws) }

// Draw returns a copy of draw i.
func (p Params) Draw(i int) Draw { return p.draws[i].clone() }

// Mean returns the element-wise mean over all draws.
func (p Params) Mean() Draw {
	if len(p.draws) == 0 {
		return Draw{}
	}
	first := p.draws[0]
	if len(p.draws) == 1 {
		return first.clone()
	}
	out := Draw{
		Delta: make([]float64, len(first.Delta)),
		Beta:  make([]float64, len(first.Beta)),
	}
	n := float64(len(p.draws))
	for _, d := range p.draws {
		out.K += d.K / n
		out.M += d.M / n
		out.SigmaObs += d.SigmaObs / n
		for j, v := range d.Delta {
			out.Delta[j] += v / n
		}
		for j, v := range d.Beta {
			out.Beta[j] += v / n
		}
	}
	return out
}
