package injection

import "sort"

// SanitizeMode selects how detected injection spans are neutralized.
type SanitizeMode string

const (
	Neutralize SanitizeMode = "neutralize"
	Remove     SanitizeMode = "remove"
	Block      SanitizeMode = "block"
	Escape     SanitizeMode = "escape"
)

// SanitizeOptions configures Sanitize.
type SanitizeOptions struct {
	Mode              SanitizeMode
	StripInvisible    bool
	EscapeDelimiters  bool
	DataPrefix        string
	MaxLength         int
}

// Result is the outcome of a Sanitize call.
type Result struct {
	Text        string
	WasBlocked  bool
	Assessment  Assessment
}

// Sanitize runs the configured pre-passes, scores the text, and
// applies Mode to every detected span (highest start first so earlier
// offsets stay valid).
func Sanitize(text string, opts SanitizeOptions) Result {
	working := text
	smuggled := detectTokenSmuggling(text)

	if opts.StripInvisible {
		working = stripInvisible(working)
	}
	if opts.EscapeDelimiters {
		working = escapeDelimiters(working)
	}

	normalized := normalizeForMatching(working)
	matches := matchesOnNormalized(normalized)

	// smuggled is always reported, but only splice-safe against working
	// when StripInvisible didn't already remove the characters it found.
	reportMatches := matches
	spliceMatches := matches
	if len(smuggled) > 0 {
		reportMatches = append(append([]Match{}, matches...), smuggled...)
		if !opts.StripInvisible {
			spliceMatches = append(append([]Match{}, matches...), smuggled...)
			sort.Slice(spliceMatches, func(i, j int) bool { return spliceMatches[i].Start > spliceMatches[j].Start })
		}
	}

	var total float64
	for _, m := range reportMatches {
		total += m.RiskWeight
	}
	assessment := Assessment{Risk: clamp01(total), Level: levelFor(clamp01(total)), Matches: reportMatches}

	if opts.Mode == Block && len(reportMatches) > 0 {
		return Result{Text: "", WasBlocked: true, Assessment: assessment}
	}

	if opts.Mode == Escape {
		working = "<<<user_input>>>\n" + working + "\n<<</user_input>>>"
	} else {
		for _, m := range spliceMatches {
			if m.End > len(working) || m.Start > m.End {
				continue
			}
			replacement := ""
			if opts.Mode == Neutralize || opts.Mode == "" {
				replacement = "[user_input: " + string(m.Type) + "]"
			}
			working = working[:m.Start] + replacement + working[m.End:]
		}
	}

	if opts.DataPrefix != "" {
		working = opts.DataPrefix + working
	}
	if opts.MaxLength > 0 && len(working) > opts.MaxLength {
		working = working[:opts.MaxLength]
	}

	return Result{Text: working, Assessment: assessment}
}
