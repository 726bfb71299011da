// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package prune

import (
	"github.com/born-ml/prune/internal/prune"
	"github.com/born-ml/prune/internal/tensor"
)

// Config selects prunable modules by type or name and assigns a sparsity.
type Config = prune.Config

// LoadConfigList parses a YAML config list from a file.
//
// Example file:
//
//	- sparsity: 0.5
//	  op_types: [Linear]
func LoadConfigList(path string) ([]Config, error) {
	return prune.LoadConfigList(path)
}

// Criterion selects the head-importance scoring strategy.
type Criterion = prune.Criterion

// Supported importance criteria.
const (
	L1Weight     Criterion = prune.L1Weight
	L2Weight     Criterion = prune.L2Weight
	L1Activation Criterion = prune.L1Activation
	L2Activation Criterion = prune.L2Activation
	TaylorFO     Criterion = prune.TaylorFO
)

// NamedLinear pairs a Linear layer with its fully qualified module name.
type NamedLinear[B tensor.Backend] = prune.NamedLinear[B]

// Model is the surface the pruning engine needs from a model.
type Model[B tensor.Backend] = prune.Model[B]

// LinearWrapper is a selected, maskable Linear module tracked by name.
type LinearWrapper[B tensor.Backend] = prune.LinearWrapper[B]

// WeightGroup is a validated q, k, v, output projection 4-tuple whose
// heads are pruned together.
type WeightGroup[B tensor.Backend] = prune.WeightGroup[B]

// Trainer is the injected calibration and finetuning callback. Epoch 0
// is the calibration pass; epochs 1 and above are finetuning epochs.
type Trainer[B tensor.Backend] = prune.Trainer[B]

// State is the controller state of a HeadPruner.
type State = prune.State

// Controller states, in lifecycle order.
const (
	StateIdle       State = prune.StateIdle
	StateScoring    State = prune.StateScoring
	StateMasking    State = prune.StateMasking
	StateFinetuning State = prune.StateFinetuning
	StateDone       State = prune.StateDone
)

// Options configures a HeadPruner.
type Options[B tensor.Backend] = prune.Options[B]

// HeadPruner prunes whole attention heads from a model.
type HeadPruner[B tensor.Backend] = prune.HeadPruner[B]

// NewHeadPruner builds a pruner from options: selects modules via the
// config list, forms and validates weight groups, and drops modules that
// belong to no group. All configuration errors surface here.
//
// Example:
//
//	pruner, err := prune.NewHeadPruner(prune.Options[*autodiff.Backend[*cpu.Backend]]{
//	    Model:      model,
//	    Backend:    backend,
//	    ConfigList: []prune.Config{{Sparsity: 0.5, OpTypes: []string{"Linear"}}},
//	    DummyInput: dummy,
//	    HeadDim:    64,
//	    Criterion:  prune.L1Weight,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := pruner.Compress(); err != nil {
//	    return err
//	}
//	pruned := pruner.PrunedHeads()
func NewHeadPruner[B tensor.Backend](opts Options[B]) (*HeadPruner[B], error) {
	return prune.NewHeadPruner(opts)
}
