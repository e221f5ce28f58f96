package dedup

import (
	"regexp"
	"strings"

	"github.com/mnemotree/mnemocore/internal/types"
)

// Strategy selects which group member becomes primary and how its
// content is finalized.
type Strategy string

const (
	KeepOldest          Strategy = "keep_oldest"
	KeepNewest           Strategy = "keep_newest"
	KeepMostAccessed     Strategy = "keep_most_accessed"
	KeepHighestImportance Strategy = "keep_highest_importance"
	CombineContent       Strategy = "combine_content"
)

// Merge applies strategy to group.Members (already sorted created_at
// asc, importance desc per DiscoverGroups) and returns the resulting
// primary record plus the IDs of the members it absorbed.
func Merge(group Group, strategy Strategy) (*types.MemoryUnit, []string) {
	if len(group.Members) == 0 {
		return nil, nil
	}

	primary := selectPrimary(group.Members, strategy).Clone()

	if strategy == CombineContent {
		primary.Content = combineContent(group.Members)
	}

	var totalAccess uint64
	maxImportance := primary.Importance
	topicSet := make(map[string]struct{})
	var absorbed []string

	for _, m := range group.Members {
		totalAccess += m.AccessCount
		if m.Importance > maxImportance {
			maxImportance = m.Importance
		}
		for _, t := range m.Topics {
			topicSet[t] = struct{}{}
		}
		if m.ID != primary.ID {
			absorbed = append(absorbed, m.ID)
		}
	}

	primary.AccessCount = totalAccess
	primary.Importance = maxImportance
	primary.Topics = make([]string, 0, len(topicSet))
	for t := range topicSet {
		primary.Topics = append(primary.Topics, t)
	}

	return primary, absorbed
}

func selectPrimary(members []*types.MemoryUnit, strategy Strategy) *types.MemoryUnit {
	switch strategy {
	case KeepNewest:
		best := members[0]
		for _, m := range members[1:] {
			if m.CreatedAt.After(best.CreatedAt) {
				best = m
			}
		}
		return best
	case KeepMostAccessed:
		best := members[0]
		for _, m := range members[1:] {
			if m.AccessCount > best.AccessCount {
				best = m
			}
		}
		return best
	case KeepHighestImportance:
		best := members[0]
		for _, m := range members[1:] {
			if m.Importance > best.Importance {
				best = m
			}
		}
		return best
	case KeepOldest, CombineContent:
		fallthrough
	default:
		// Members are pre-sorted created_at asc, importance desc —
		// the head is already the oldest (KeepOldest's definition,
		// and CombineContent's base record before its content is
		// replaced).
		return members[0]
	}
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// combineContent appends unique sentences (case-folded, trimmed
// comparison) found across every member, in member order, starting
// from the primary's own content.
func combineContent(members []*types.MemoryUnit) string {
	seen := make(map[string]struct{})
	var sentences []string

	for _, m := range members {
		for _, s := range sentenceSplit.Split(m.Content, -1) {
			trimmed := strings.TrimSpace(s)
			if trimmed == "" {
				continue
			}
			key := strings.ToLower(trimmed)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			sentences = append(sentences, trimmed)
		}
	}

	return strings.Join(sentences, ". ")
}
