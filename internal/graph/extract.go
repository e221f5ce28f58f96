package graph

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mnemotree/mnemocore/internal/types"
)

var (
	capitalizedSeq = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\b`)
	emailRe        = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	contradictionMarkers = []string{"however", "but", "actually", "no longer", "instead", "contrary to", "on the other hand"}
	causalMarkers        = []string{"because", "caused by", "resulted in", "led to", "due to"}
	enablingMarkers      = []string{"allows", "enables", "makes it possible", "required for", "prerequisite"}
	expansionMarkers     = []string{"in addition", "furthermore", "also", "more specifically", "building on"}
)

// ExtractEntities returns the deduplicated set of capitalized-sequence
// and email-shaped entities mentioned in content: all emails first, then
// capitalized sequences, each group in order of first appearance.
func ExtractEntities(content string) []string {
	seen := make(map[string]struct{})
	var out []string

	for _, m := range emailRe.FindAllString(content, -1) {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	for _, m := range capitalizedSeq.FindAllString(content, -1) {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// entityIndex maps an entity name to the memory IDs that mention it.
func entityIndex(memories []*types.MemoryUnit) map[string]*Entity {
	index := make(map[string]*Entity)
	for _, m := range memories {
		for _, name := range ExtractEntities(m.Content) {
			e, ok := index[name]
			if !ok {
				e = &Entity{Name: name}
				index[name] = e
			}
			e.MemoryIDs = append(e.MemoryIDs, m.ID)
		}
	}
	return index
}

// ExtractRelations derives a candidate edge set over memories using
// shared-entity co-occurrence and lexical markers to pick a relation
// type. It is a heuristic, not a learned classifier: the spec treats
// the knowledge graph as a secondary feature, so a cheap rule set that
// produces plausible, inspectable edges is preferred over anything
// requiring an external model call.
func ExtractRelations(memories []*types.MemoryUnit) []Edge {
	sorted := make([]*types.MemoryUnit, len(memories))
	copy(sorted, memories)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	byID := make(map[string]*types.MemoryUnit, len(sorted))
	for _, m := range sorted {
		byID[m.ID] = m
	}

	index := entityIndex(sorted)
	var edges []Edge
	seenPair := make(map[string]struct{})

	addEdge := func(from, to string, typ RelationType, strength float64, context string) {
		if from == to {
			return
		}
		key := from + "|" + to + "|" + string(typ)
		if _, ok := seenPair[key]; ok {
			return
		}
		seenPair[key] = struct{}{}
		edges = append(edges, Edge{From: from, To: to, Type: typ, Strength: clampStrength(strength), Context: context})
	}

	// Shared-entity co-occurrence: the later memory "references" or is
	// "similar" to the earlier one, depending on how many entities they
	// share relative to the smaller memory's entity count.
	for _, e := range index {
		if len(e.MemoryIDs) < 2 {
			continue
		}
		for i := 0; i < len(e.MemoryIDs); i++ {
			for j := i + 1; j < len(e.MemoryIDs); j++ {
				from, to := e.MemoryIDs[i], e.MemoryIDs[j]
				a, b := byID[from], byID[to]
				if a == nil || b == nil {
					continue
				}
				if b.CreatedAt.Before(a.CreatedAt) {
					from, to = to, from
				}
				strength := sharedEntityStrength(index, byID[from], byID[to])
				if strength >= 0.6 {
					addEdge(from, to, RelationSimilar, strength, "shares entity "+e.Name)
				} else {
					addEdge(from, to, RelationReferences, strength, "mentions "+e.Name)
				}
			}
		}
	}

	// Lexical-marker relations and temporal sequencing between
	// consecutive memories in the same session.
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		lower := strings.ToLower(cur.Content)

		switch {
		case containsAny(lower, contradictionMarkers):
			addEdge(cur.ID, prev.ID, RelationContradicts, 0.6, "lexical marker")
		case containsAny(lower, causalMarkers):
			addEdge(prev.ID, cur.ID, RelationCauses, 0.6, "lexical marker")
		case containsAny(lower, enablingMarkers):
			addEdge(prev.ID, cur.ID, RelationEnables, 0.6, "lexical marker")
		case containsAny(lower, expansionMarkers):
			addEdge(prev.ID, cur.ID, RelationExpands, 0.6, "lexical marker")
		case prev.SessionID != "" && prev.SessionID == cur.SessionID:
			addEdge(prev.ID, cur.ID, RelationSequential, 0.5, "same session, adjacent in time")
		}
	}

	return edges
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func sharedEntityStrength(index map[string]*Entity, a, b *types.MemoryUnit) float64 {
	aEntities := ExtractEntities(a.Content)
	bSet := make(map[string]struct{})
	for _, name := range ExtractEntities(b.Content) {
		bSet[name] = struct{}{}
	}
	if len(aEntities) == 0 || len(bSet) == 0 {
		return 0.5
	}
	shared := 0
	for _, name := range aEntities {
		if _, ok := bSet[name]; ok {
			shared++
		}
	}
	smaller := len(aEntities)
	if len(bSet) < smaller {
		smaller = len(bSet)
	}
	if smaller == 0 {
		return 0.5
	}
	return float64(shared) / float64(smaller)
}
