// Package solver provides the public API for the parameter update rules:
// SGD, RMSProp and AdaDelta.
package solver

import (
	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/solver"
)

// Mat is the differentiable tensor type solvers update in place.
type Mat = mat.Mat

// Solver is the shared step(params, scale, l2) contract.
type Solver = solver.Solver

// SGD implements w -= lr·dw + l2·w.
type SGD = solver.SGD

// NewSGD creates an SGD solver with the given learning rate.
func NewSGD(lr float32) *SGD { return solver.NewSGD(lr) }

// RMSProp implements spec.md's RMSProp(decay, eps, clip).
type RMSProp = solver.RMSProp

// NewRMSProp creates an RMSProp solver.
func NewRMSProp(lr, decay, eps, clip float32) *RMSProp { return solver.NewRMSProp(lr, decay, eps, clip) }

// AdaDelta implements spec.md's AdaDelta(rho, eps, clip).
type AdaDelta = solver.AdaDelta

// NewAdaDelta creates an AdaDelta solver.
func NewAdaDelta(rho, eps, clip float32) *AdaDelta { return solver.NewAdaDelta(rho, eps, clip) }

// DefaultAdaDelta returns an AdaDelta solver using spec.md's conventional
// defaults: rho=0.95, eps=1e-6, clip=5.0.
func DefaultAdaDelta() *AdaDelta { return solver.DefaultAdaDelta() }
