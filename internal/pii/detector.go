package pii

import "sort"

// Match is one detected span of sensitive text.
type Match struct {
	Type       Type
	Start      int
	End        int
	Text       string
	Confidence float64
}

// Detect scans text against every pattern, applies each pattern's
// validator to adjust confidence, and resolves overlaps by keeping the
// earliest-starting, highest-confidence match at each position.
func Detect(text string) []Match {
	var all []Match

	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			raw := text[loc[0]:loc[1]]
			confidence := p.baseConfidence
			if p.validate != nil {
				if p.validate(raw) {
					confidence += 0.2
				} else {
					confidence -= 0.2
				}
				if confidence > 1 {
					confidence = 1
				}
				if confidence < 0 {
					confidence = 0
				}
			}
			all = append(all, Match{Type: p.typ, Start: loc[0], End: loc[1], Text: raw, Confidence: confidence})
		}
	}

	return resolveOverlaps(all)
}

func resolveOverlaps(matches []Match) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].Confidence > matches[j].Confidence
	})

	var kept []Match
	covered := make([]bool, 0)
	maxEnd := 0
	for _, m := range matches {
		if m.End > maxEnd {
			for len(covered) < m.End {
				covered = append(covered, false)
			}
			maxEnd = m.End
		}
		overlaps := false
		for i := m.Start; i < m.End; i++ {
			if covered[i] {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		for i := m.Start; i < m.End; i++ {
			covered[i] = true
		}
		kept = append(kept, m)
	}
	return kept
}
