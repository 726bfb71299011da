// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package prune provides structured attention-head pruning for transformer
// models.
//
// # Overview
//
// Multi-head attention projects its input through four Linear modules:
// query, key, value and output. A head is a contiguous block of rows in
// the q, k, v weights and the matching block of columns in the output
// weight. The pruner scores heads by importance, masks the least
// important ones to zero as a whole group, and optionally finetunes
// between iterations so the model recovers.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/prune/autodiff"
//	    "github.com/born-ml/prune/backend/cpu"
//	    "github.com/born-ml/prune/prune"
//	)
//
//	backend := autodiff.New(cpu.New())
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
//	for group, heads := range pruner.PrunedHeads() {
//	    fmt.Println(group, heads)
//	}
//
// # Weight Groups
//
// Groups can be given explicitly as 4-tuples of module names in q, k, v,
// output order, or discovered automatically by tracing one forward pass
// over a dummy input on an autodiff backend.
//
// # Criteria
//
// Weight-magnitude criteria (L1Weight, L2Weight) need no data. Activation
// and gradient criteria (L1Activation, L2Activation, TaylorFO) need a
// calibration pass through the Trainer callback before each masking step.
//
// # Iterative Pruning
//
// With Iterations > 1 the target sparsity is reached gradually, with
// finetuning epochs between masking steps. Heads pruned in earlier
// iterations stay pruned.
package prune
