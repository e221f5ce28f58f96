package summarizer

import (
	"context"

	"github.com/mnemotree/mnemocore/internal/types"
)

// Hierarchical produces a single root Summary by chunking memories into
// roughly-equal groups of at least 3, summarizing each group, then
// repeating over the resulting summaries for up to levels rounds.
// levels is clamped to [2, 5].
func (s *Summarizer) Hierarchical(ctx context.Context, memories []*types.MemoryUnit, levels int, opts Options) (*Summary, error) {
	if levels < 2 {
		levels = 2
	}
	if levels > 5 {
		levels = 5
	}

	current := memories
	var last *Summary

	for level := 0; level < levels; level++ {
		if len(current) <= 1 {
			if len(current) == 1 {
				return s.Summarize(ctx, current, opts)
			}
			return last, nil
		}

		groups := chunkIntoGroups(current, 3)
		var nextLevel []*types.MemoryUnit

		for _, group := range groups {
			summary, err := s.Summarize(ctx, group, opts)
			if err != nil {
				return nil, err
			}
			last = summary
			nextLevel = append(nextLevel, summaryAsMemory(summary, group))
		}

		if len(groups) == 1 {
			return last, nil
		}
		current = nextLevel
	}

	return last, nil
}

// chunkIntoGroups splits items into groups of at least minSize,
// distributing remainder items across the earliest groups so no group
// falls below minSize unless items itself is too small to form two.
func chunkIntoGroups(items []*types.MemoryUnit, minSize int) [][]*types.MemoryUnit {
	if len(items) <= minSize {
		return [][]*types.MemoryUnit{items}
	}

	numGroups := len(items) / minSize
	if numGroups < 1 {
		numGroups = 1
	}
	base := len(items) / numGroups
	remainder := len(items) % numGroups

	groups := make([][]*types.MemoryUnit, 0, numGroups)
	idx := 0
	for g := 0; g < numGroups; g++ {
		size := base
		if g < remainder {
			size++
		}
		if idx+size > len(items) {
			size = len(items) - idx
		}
		groups = append(groups, items[idx:idx+size])
		idx += size
	}
	return groups
}

// summaryAsMemory wraps a rolled-up Summary as a synthetic MemoryUnit
// so the next hierarchy level can treat it like any other source.
func summaryAsMemory(summary *Summary, sources []*types.MemoryUnit) *types.MemoryUnit {
	importance := 0.5
	var createdAt = sources[0].CreatedAt
	for _, m := range sources {
		importance += m.Importance
		if m.CreatedAt.Before(createdAt) {
			createdAt = m.CreatedAt
		}
	}
	importance /= float64(len(sources) + 1)

	return &types.MemoryUnit{
		ID:         "",
		TenantID:   sources[0].TenantID,
		Content:    summary.Content,
		Type:       types.TypeSemantic,
		Embedding:  summary.Embedding,
		Importance: importance,
		Topics:     summary.Topics,
		CreatedAt:  createdAt,
	}
}
