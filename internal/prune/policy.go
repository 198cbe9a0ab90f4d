package prune

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/BegaDeveloper/medqa/internal/dataset"
)

const policyVersion = 1

// IndexSet is a set of pre-filter record indices.
type IndexSet map[int]struct{}

// NewIndexSet builds a set from the given indices.
func NewIndexSet(indices ...int) IndexSet {
	set := IndexSet{}
	for _, index := range indices {
		set[index] = struct{}{}
	}
	return set
}

func (set IndexSet) Contains(index int) bool {
	_, ok := set[index]
	return ok
}

// Sorted returns the indices in ascending order.
func (set IndexSet) Sorted() []int {
	indices := make([]int, 0, len(set))
	for index := range set {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	return indices
}

// Policy maps a split name to the indices that must be dropped from it.
// Splits without an entry keep every record.
type Policy map[string]IndexSet

// DefaultPolicy is the built-in list of known bad entries.
func DefaultPolicy() Policy {
	return Policy{
		dataset.SplitTrain:   NewIndexSet(7255, 8021),
		dataset.SplitUSQBank: NewIndexSet(1176, 2197),
	}
}

// For returns the drop set of a split, never nil.
func (policy Policy) For(split string) IndexSet {
	if set, ok := policy[split]; ok && set != nil {
		return set
	}
	return IndexSet{}
}

type policyFile struct {
	Version int              `yaml:"version"`
	Drop    map[string][]int `yaml:"drop"`
}

// LoadPolicy reads a drop policy from a YAML file of the form
//
//	version: 1
//	drop:
//	  train: [7255, 8021]
func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drop policy: %w", err)
	}
	file := policyFile{}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("invalid drop policy %s: %w", path, err)
	}
	if file.Version != 0 && file.Version != policyVersion {
		return nil, fmt.Errorf("invalid drop policy %s: unsupported version %d", path, file.Version)
	}

	policy := Policy{}
	for split, indices := range file.Drop {
		if _, known := dataset.LookupSplit(split); !known {
			return nil, fmt.Errorf("invalid drop policy %s: unknown split %q", path, split)
		}
		for _, index := range indices {
			if index < 0 {
				return nil, fmt.Errorf("invalid drop policy %s: negative index %d for split %q", path, index, split)
			}
		}
		policy[split] = NewIndexSet(indices...)
	}
	return policy, nil
}
