package solver

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/samplemv"
)

// Default sampler settings.
const (
	defaultBurnIn = 500
	defaultThin   = 5
	defaultStep   = 0.01
	defaultBatch  = 100
)

// Metropolis draws posterior samples with random-walk Metropolis-Hastings
// and an isotropic normal proposal.
type Metropolis struct {
	burnIn int
	thin   int
	step   float64
	seed   uint64
	batch  int
}

// NewMetropolis creates a sampler.
func NewMetropolis(opts ...SamplerOption) *Metropolis {
	m := &Metropolis{
		burnIn: defaultBurnIn,
		thin:   defaultThin,
		step:   defaultStep,
		batch:  defaultBatch,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type logProber struct{ d Density }

func (l logProber) LogProb(x []float64) float64 { return l.d.LogDensity(x) }

// Sample returns n draws. ctx is checked between batches.
func (m *Metropolis) Sample(ctx context.Context, d Density, init []float64, n int) ([][]float64, error) {
	dim := d.Dim()
	if len(init) != dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(init), dim)
	}
	if n <= 0 {
		return nil, ErrInvalidDraws
	}

	cov := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		cov.SetSym(i, i, m.step*m.step)
	}
	src := rand.NewPCG(m.seed, 0x9e3779b97f4a7c15)
	proposal, ok := samplemv.NewProposalNormal(cov, src)
	if !ok {
		return nil, ErrBadProposal
	}

	current := append([]float64(nil), init...)
	burnIn := m.burnIn
	out := make([][]float64, 0, n)
	for len(out) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows := min(m.batch, n-len(out))
		batch := mat.NewDense(rows, dim, nil)
		samplemv.MetropolisHastingser{
			Initial:  current,
			Target:   logProber{d: d},
			Proposal: proposal,
			Src:      src,
			BurnIn:   burnIn,
			Rate:     m.thin,
		}.Sample(batch)
		burnIn = 0

		for r := 0; r < rows; r++ {
			out = append(out, append([]float64(nil), batch.RawRowView(r)...))
		}
		copy(current, batch.RawRowView(rows-1))
	}
	for _, x := range out {
		if !finite(x) {
			return nil, ErrNonFinite
		}
	}
	return out, nil
}
