// Package prune implements structured pruning of multi-head attention
// layers: grouping the four projection weights of each attention layer,
// ranking heads by importance, and computing consistent binary masks that
// remove whole heads across a group.
//
// The engine consumes an injected model surface, an optional trainer
// callback for calibration and finetuning, and a config list selecting
// which layers to prune at which sparsity. See HeadPruner for the entry
// point.
package prune

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// opTypeLinear is the only operation type the engine prunes.
const opTypeLinear = "Linear"

// Config is one entry of the pruning config list. An entry selects a set
// of modules by operation type and/or name and assigns them a sparsity
// target. When several entries match one module, the last one wins.
type Config struct {
	// Sparsity is the target fraction of heads to remove, in (0, 1).
	Sparsity float64 `yaml:"sparsity"`

	// OpTypes restricts the entry to modules of these operation types.
	// Empty means any type. Only "Linear" modules can be pruned.
	OpTypes []string `yaml:"op_types,omitempty"`

	// OpNames restricts the entry to modules with these exact names.
	// Empty means any name.
	OpNames []string `yaml:"op_names,omitempty"`
}

// LoadConfigList reads a YAML config list from a file.
//
// The file holds a list of entries:
//
//	- sparsity: 0.5
//	  op_types: [Linear]
//	- sparsity: 0.25
//	  op_names: [encoder.attn.q_proj, encoder.attn.k_proj]
func LoadConfigList(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prune: read config list: %w", err)
	}

	var list []Config
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("prune: parse config list: %w", err)
	}

	if err := validateConfigList(list); err != nil {
		return nil, err
	}
	return list, nil
}

// validateConfigList checks that the list is non-empty and every sparsity
// lies strictly between 0 and 1.
func validateConfigList(list []Config) error {
	if len(list) == 0 {
		return fmt.Errorf("prune: config list must contain at least one entry")
	}
	for i, cfg := range list {
		if cfg.Sparsity <= 0 || cfg.Sparsity >= 1 {
			return fmt.Errorf("prune: config entry %d: sparsity must be in (0, 1), got %v", i, cfg.Sparsity)
		}
	}
	return nil
}

// matches reports whether this entry selects a Linear module with the
// given name.
func (c Config) matches(name string) bool {
	if len(c.OpTypes) > 0 && !contains(c.OpTypes, opTypeLinear) {
		return false
	}
	if len(c.OpNames) > 0 && !contains(c.OpNames, name) {
		return false
	}
	return true
}

// sparsityFor resolves the sparsity for a named module against the config
// list. The last matching entry wins. The second return value is false
// when no entry matches.
func sparsityFor(name string, list []Config) (float64, bool) {
	sparsity := 0.0
	found := false
	for _, cfg := range list {
		if cfg.matches(name) {
			sparsity = cfg.Sparsity
			found = true
		}
	}
	return sparsity, found
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
