package summarizer

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/mnemotree/mnemocore/internal/embedding"
	"github.com/mnemotree/mnemocore/internal/types"
)

// Summary is the extractive output of Summarize: a reduced-token
// representation of a set of source memories plus the bookkeeping
// needed to update it incrementally.
type Summary struct {
	Content   string
	KeyPoints []string
	Entities  []string
	Topics    []string
	Embedding []float32

	// sourceSentences is kept so Update can re-dedupe against prior
	// output without re-splitting Content.
	sourceSentences []string
}

// Options configures a Summarize call. Ratio is the target compression
// ratio applied to the estimated input token count; MaxOutputTokens
// caps the result regardless of Ratio.
type Options struct {
	Ratio           float64
	MaxOutputTokens int
}

func (o Options) withDefaults() Options {
	if o.Ratio <= 0 {
		o.Ratio = 0.2
	}
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = 500
	}
	return o
}

type scoredSentence struct {
	text       string
	source     *types.MemoryUnit
	order      int
	embedding  []float32
	score      float64
}

// Summarizer produces extractive summaries over a set of memories,
// scoring candidate sentences by similarity to the centroid, source
// importance, an ideal-length band, and the presence of named entities
// or dates.
type Summarizer struct {
	gateway embedding.Gateway
}

func New(gateway embedding.Gateway) *Summarizer {
	return &Summarizer{gateway: gateway}
}

// Summarize builds an extractive Summary over memories. Memories should
// be passed oldest-first; the summary's sentences are reordered
// chronologically after selection regardless of score order.
func (s *Summarizer) Summarize(ctx context.Context, memories []*types.MemoryUnit, opts Options) (*Summary, error) {
	opts = opts.withDefaults()

	candidates, err := s.collectCandidates(ctx, memories)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Summary{}, nil
	}

	centroid := centroidOf(candidates)
	for i := range candidates {
		candidates[i].score = scoreSentence(candidates[i], centroid)
	}

	totalInputTokens := 0
	for _, m := range memories {
		totalInputTokens += estimateTokens(m.Content)
	}
	targetTokens := int(opts.Ratio * float64(totalInputTokens))
	if targetTokens <= 0 || targetTokens > opts.MaxOutputTokens {
		targetTokens = opts.MaxOutputTokens
	}

	selected := selectByBudget(candidates, targetTokens)
	sort.Slice(selected, func(i, j int) bool { return selected[i].order < selected[j].order })

	return s.buildSummary(ctx, selected)
}

// Update incrementally folds newMemories into prior. If the merged
// sentence set grows past 1.5x the previous sentence count, newMemories
// alone are resummarized from scratch instead of appended; prior's
// sentences are then not part of the result.
func (s *Summarizer) Update(ctx context.Context, prior *Summary, newMemories []*types.MemoryUnit, opts Options) (*Summary, error) {
	if prior == nil || len(prior.sourceSentences) == 0 {
		return s.Summarize(ctx, newMemories, opts)
	}

	fresh, err := s.Summarize(ctx, newMemories, opts)
	if err != nil {
		return nil, err
	}

	merged := dedupeSentences(append(append([]string(nil), prior.sourceSentences...), fresh.sourceSentences...))

	if float64(len(merged)) > 1.5*float64(len(prior.sourceSentences)) {
		all := append(append([]*types.MemoryUnit(nil)), newMemories...)
		return s.Summarize(ctx, all, opts)
	}

	content := strings.Join(merged, " ")
	vec, err := s.gateway.Embed(ctx, content)
	if err != nil {
		return nil, err
	}

	topics := make(map[string]struct{})
	for _, t := range prior.Topics {
		topics[t] = struct{}{}
	}
	for _, t := range fresh.Topics {
		topics[t] = struct{}{}
	}
	topicList := make([]string, 0, len(topics))
	for t := range topics {
		topicList = append(topicList, t)
	}

	return &Summary{
		Content:         content,
		KeyPoints:       topKeyPoints(merged, 5),
		Entities:        extractEntities(content, 20),
		Topics:          topicList,
		Embedding:       vec,
		sourceSentences: merged,
	}, nil
}

func dedupeSentences(sentences []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range sentences {
		key := strings.ToLower(strings.TrimSpace(s))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func topKeyPoints(sentences []string, n int) []string {
	if len(sentences) <= n {
		return append([]string(nil), sentences...)
	}
	return append([]string(nil), sentences[:n]...)
}

func (s *Summarizer) collectCandidates(ctx context.Context, memories []*types.MemoryUnit) ([]scoredSentence, error) {
	var candidates []scoredSentence
	order := 0
	for _, m := range memories {
		for _, sentence := range splitIntoSentences(m.Content) {
			vec, err := s.gateway.Embed(ctx, sentence)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, scoredSentence{
				text:      sentence,
				source:    m,
				order:     order,
				embedding: vec,
			})
			order++
		}
	}
	return candidates, nil
}

func centroidOf(candidates []scoredSentence) []float32 {
	if len(candidates) == 0 {
		return nil
	}
	dim := len(candidates[0].embedding)
	centroid := make([]float64, dim)
	for _, c := range candidates {
		for i, v := range c.embedding {
			if i < dim {
				centroid[i] += float64(v)
			}
		}
	}
	out := make([]float32, dim)
	for i, v := range centroid {
		out[i] = float32(v / float64(len(candidates)))
	}
	return out
}

func scoreSentence(c scoredSentence, centroid []float32) float64 {
	centroidSim := cosineSimilarity(c.embedding, centroid)
	sourceImportance := 0.5
	if c.source != nil {
		sourceImportance = c.source.Importance
	}
	lengthBand := triangularLengthScore(len(strings.Fields(c.text)))
	entity, date := hasEntityOrDate(c.text)
	bonus := 0.0
	if entity {
		bonus += 0.1
	}
	if date {
		bonus += 0.1
	}

	return 0.3*centroidSim + 0.3*sourceImportance + 0.2*lengthBand + bonus
}

// triangularLengthScore peaks at 1.0 for sentences between 5 and 25
// words (centered at 15), tapering linearly to 0 outside that band.
func triangularLengthScore(words int) float64 {
	const low, mid, high = 5.0, 15.0, 25.0
	w := float64(words)
	switch {
	case w <= low || w >= high:
		return 0
	case w <= mid:
		return (w - low) / (mid - low)
	default:
		return (high - w) / (high - mid)
	}
}

func selectByBudget(candidates []scoredSentence, targetTokens int) []scoredSentence {
	ranked := append([]scoredSentence(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var selected []scoredSentence
	used := 0
	for _, c := range ranked {
		if used >= targetTokens && len(selected) > 0 {
			break
		}
		selected = append(selected, c)
		used += estimateTokens(c.text)
	}
	return selected
}

func (s *Summarizer) buildSummary(ctx context.Context, selected []scoredSentence) (*Summary, error) {
	sentences := make([]string, len(selected))
	for i, c := range selected {
		sentences[i] = c.text
	}
	content := strings.Join(sentences, " ")

	vec, err := s.gateway.Embed(ctx, content)
	if err != nil {
		return nil, err
	}

	ranked := append([]scoredSentence(nil), selected...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	keyPoints := make([]string, 0, 5)
	for i := 0; i < len(ranked) && i < 5; i++ {
		keyPoints = append(keyPoints, ranked[i].text)
	}

	topicSet := make(map[string]struct{})
	for _, c := range selected {
		if c.source == nil {
			continue
		}
		for _, t := range c.source.Topics {
			topicSet[t] = struct{}{}
		}
	}
	topics := make([]string, 0, len(topicSet))
	for t := range topicSet {
		topics = append(topics, t)
	}

	return &Summary{
		Content:         content,
		KeyPoints:       keyPoints,
		Entities:        extractEntities(content, 20),
		Topics:          topics,
		Embedding:       vec,
		sourceSentences: sentences,
	}, nil
}

func estimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * 1.3)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
