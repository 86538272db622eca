// Package solver implements the parameter update rules of spec.md §4.6:
// SGD, RMSProp and AdaDelta, each maintaining per-parameter accumulators
// allocated lazily and keyed by Mat id so that Hogwild worker shadows
// (distinct Mat objects aliasing the same underlying buffer) share no
// solver state with each other.
package solver

import (
	"math"

	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/ndarray"
)

// Solver is the shared contract: step(params, scale=1.0, l2=0.0). After a
// step every dw is zeroed.
type Solver interface {
	Step(params []*mat.Mat, scale, l2 float32)
}

func accumulator(store map[uint64]*ndarray.Array[float32], id uint64, shape ndarray.Shape) []float32 {
	a, ok := store[id]
	if !ok {
		a = ndarray.Zeros[float32](shape)
		store[id] = a
	}
	return a.Dense()
}

func clip(v, bound float32) float32 {
	if bound <= 0 {
		return v
	}
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}

// SGD implements w -= lr·dw + l2·w.
type SGD struct {
	LR float32
}

// NewSGD creates an SGD solver with the given learning rate.
func NewSGD(lr float32) *SGD { return &SGD{LR: lr} }

// Step applies one SGD update to every parameter.
func (s *SGD) Step(params []*mat.Mat, scale, l2 float32) {
	for _, p := range params {
		if !p.HasGrad() {
			continue
		}
		w := p.W().Dense()
		dw := p.DW().Dense()
		for i := range w {
			w[i] -= s.LR*(scale*dw[i]) + l2*w[i]
		}
		p.ZeroGrad()
	}
}

// RMSProp implements spec.md §4.6's RMSProp(decay, eps, clip):
// g2 = decay·g2 + (1-decay)·dw²; w -= lr·dw/(√g2+eps), clipping dw to
// ±clip before it is used (clip-first, per the Open Questions resolution).
type RMSProp struct {
	LR, Decay, Eps, Clip float32

	g2 map[uint64]*ndarray.Array[float32]
}

// NewRMSProp creates an RMSProp solver.
func NewRMSProp(lr, decay, eps, clip float32) *RMSProp {
	return &RMSProp{LR: lr, Decay: decay, Eps: eps, Clip: clip, g2: make(map[uint64]*ndarray.Array[float32])}
}

// Step applies one RMSProp update to every parameter.
func (r *RMSProp) Step(params []*mat.Mat, scale, l2 float32) {
	for _, p := range params {
		if !p.HasGrad() {
			continue
		}
		w := p.W().Dense()
		dw := p.DW().Dense()
		g2 := accumulator(r.g2, p.ID(), p.Shape())
		for i := range w {
			d := clip(scale*dw[i]+l2*w[i], r.Clip)
			g2[i] = r.Decay*g2[i] + (1-r.Decay)*d*d
			w[i] -= r.LR * d / (float32(math.Sqrt(float64(g2[i]))) + r.Eps)
		}
		p.ZeroGrad()
	}
}

// AdaDelta implements spec.md §4.6's AdaDelta(rho, eps, clip):
// g2 = ρ·g2 + (1-ρ)·dw²; Δ = -dw·√(δ2+eps)/√(g2+eps);
// δ2 = ρ·δ2 + (1-ρ)·Δ²; w += Δ. Clip first.
type AdaDelta struct {
	Rho, Eps, Clip float32

	g2     map[uint64]*ndarray.Array[float32]
	delta2 map[uint64]*ndarray.Array[float32]
}

// NewAdaDelta creates an AdaDelta solver with spec.md's conventional
// defaults (rho=0.95, eps=1e-6, clip=5.0) available via DefaultAdaDelta.
func NewAdaDelta(rho, eps, clip float32) *AdaDelta {
	return &AdaDelta{
		Rho: rho, Eps: eps, Clip: clip,
		g2:     make(map[uint64]*ndarray.Array[float32]),
		delta2: make(map[uint64]*ndarray.Array[float32]),
	}
}

// DefaultAdaDelta returns an AdaDelta solver using spec.md's conventional
// defaults: rho=0.95, eps=1e-6, clip=5.0.
func DefaultAdaDelta() *AdaDelta { return NewAdaDelta(0.95, 1e-6, 5.0) }

// Step applies one AdaDelta update to every parameter.
func (a *AdaDelta) Step(params []*mat.Mat, scale, l2 float32) {
	for _, p := range params {
		if !p.HasGrad() {
			continue
		}
		w := p.W().Dense()
		dw := p.DW().Dense()
		g2 := accumulator(a.g2, p.ID(), p.Shape())
		delta2 := accumulator(a.delta2, p.ID(), p.Shape())
		for i := range w {
			d := clip(scale*dw[i]+l2*w[i], a.Clip)
			g2[i] = a.Rho*g2[i] + (1-a.Rho)*d*d
			step := -d * float32(math.Sqrt(float64(delta2[i]+a.Eps))) / float32(math.Sqrt(float64(g2[i]+a.Eps)))
			delta2[i] = a.Rho*delta2[i] + (1-a.Rho)*step*step
			w[i] += step
		}
		p.ZeroGrad()
	}
}
