// Package locomo implements the LoCoMo benchmark (Long-term Conversational
// Memory, ACL 2024) for evaluating mnemocore's retrieval quality: a
// conversation with 300+ dialogue turns across many sessions is ingested as
// memories, then a set of annotated questions is answered by retrieving
// context from the index and scoring the retrieved context against the
// ground-truth answer. Answer generation is out of scope here (an LLM
// completion step is a separate concern from memory retrieval) — the score
// measures whether retrieval surfaces the right content, not whether an LLM
// can phrase it well.
//
// See: https://github.com/snap-research/locomo
package locomo

import "time"

// Dataset is the full LoCoMo dataset: a set of long conversations, each
// with its own QA and event annotations.
type Dataset struct {
	Conversations []Conversation `json:"conversations"`
}

// Conversation is one LoCoMo conversation between two speakers.
type Conversation struct {
	ID string `json:"id"`

	SpeakerA string `json:"speaker_a"`
	SpeakerB string `json:"speaker_b"`

	// Personas holds personality traits per speaker.
	Personas map[string][]string `json:"personas"`

	// Sessions maps "session_N" to that session's dialogue turns.
	Sessions map[string][]Turn `json:"sessions"`

	// SessionDates maps "session_N_date_time" to a timestamp string.
	SessionDates map[string]string `json:"session_dates"`

	QA     []QAAnnotation    `json:"qa"`
	Events []EventAnnotation `json:"events"`
}

// Turn is a single dialogue turn within a session.
type Turn struct {
	DiaID        string `json:"dia_id"`
	Speaker      string `json:"speaker"`
	Content      string `json:"content"`
	ImageURL     string `json:"image_url,omitempty"`
	ImageCaption string `json:"image_caption,omitempty"`
}

// QAAnnotation is one question-answer pair used for evaluation.
type QAAnnotation struct {
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Category QuestionCategory `json:"category"`

	// Evidence lists the dialogue IDs that contain the answer, used to
	// score whether retrieval found the right source turns.
	Evidence []string `json:"evidence,omitempty"`
}

// QuestionCategory is the LoCoMo question type.
type QuestionCategory string

const (
	CategorySingleHop   QuestionCategory = "single_hop"
	CategoryMultiHop    QuestionCategory = "multi_hop"
	CategoryTemporal    QuestionCategory = "temporal"
	CategoryCommonsense QuestionCategory = "commonsense"
	CategoryAdversarial QuestionCategory = "adversarial"
)

// EventAnnotation is one event-graph annotation (not scored by the QA
// evaluator; carried for completeness with the upstream dataset format).
type EventAnnotation struct {
	Speaker string   `json:"speaker"`
	Session int      `json:"session"`
	Event   string   `json:"event"`
	Causes  []string `json:"causes,omitempty"`
	Effects []string `json:"effects,omitempty"`
}

// IngestionResult summarizes one Ingest call.
type IngestionResult struct {
	ConversationsIngested int           `json:"conversations_ingested"`
	TotalTurns            int           `json:"total_turns"`
	TotalMemories         int           `json:"total_memories"`
	PersonaMemories       int           `json:"persona_memories"`
	TotalQAQuestions      int           `json:"total_qa_questions"`
	Duration              time.Duration `json:"duration"`
}

// RetrievalStrategy selects how context is gathered for a question.
type RetrievalStrategy string

const (
	// StrategyDirect uses the whole conversation in chronological order,
	// truncated to TopK most recent turns — simulates no retrieval at all.
	StrategyDirect RetrievalStrategy = "direct"

	// StrategyRecall runs the hybrid retriever (dense + sparse fusion)
	// against the question text, scoped to the conversation's session.
	StrategyRecall RetrievalStrategy = "recall"
)

// EvaluationConfig configures one evaluation run.
type EvaluationConfig struct {
	RetrievalStrategy RetrievalStrategy `json:"retrieval_strategy"`
	TopK              int               `json:"top_k"`
	Category          QuestionCategory  `json:"category,omitempty"`
	ConversationIDs   []string          `json:"conversation_ids,omitempty"`
	Verbose           bool              `json:"verbose"`
}

// QuestionResult is the scored outcome for a single QA pair.
type QuestionResult struct {
	ConversationID    string           `json:"conversation_id"`
	Question          string           `json:"question"`
	Category          QuestionCategory `json:"category"`
	GroundTruth       string           `json:"ground_truth"`
	RetrievedAnswer   string           `json:"retrieved_answer"`
	RetrievedMemories int              `json:"retrieved_memories"`
	F1                float64          `json:"f1"`
	Precision         float64          `json:"precision"`
	Recall            float64          `json:"recall"`
	BLEU1             float64          `json:"bleu1"`
	EvidenceFound     bool             `json:"evidence_found"`
}

// Metrics aggregates scores over a batch of questions.
type Metrics struct {
	F1        float64 `json:"f1"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	BLEU1     float64 `json:"bleu1"`
	Count     int     `json:"count"`
}

// BenchmarkResults is the complete output of one evaluation run.
type BenchmarkResults struct {
	Benchmark string                       `json:"benchmark"`
	Timestamp time.Time                    `json:"timestamp"`
	Strategy  RetrievalStrategy            `json:"retrieval_strategy"`
	Config    EvaluationConfig             `json:"config"`
	Overall   Metrics                      `json:"overall"`
	Categories map[QuestionCategory]Metrics `json:"categories"`
	Questions []QuestionResult            `json:"questions"`
	Duration  time.Duration                `json:"duration"`
}

// Baseline is a published reference score from the LoCoMo paper, used to
// put a retrieval-only F1 score in context alongside full QA systems that
// do generate an answer.
type Baseline struct {
	Model  string  `json:"model"`
	F1     float64 `json:"f1"`
	Source string  `json:"source"`
}

// PublishedBaselines are reference F1 scores from the LoCoMo paper.
var PublishedBaselines = []Baseline{
	{Model: "Human", F1: 87.9, Source: "LoCoMo paper"},
	{Model: "GPT-4", F1: 32.1, Source: "LoCoMo paper"},
	{Model: "GPT-3.5", F1: 24.2, Source: "LoCoMo paper"},
	{Model: "Llama-2-70B", F1: 16.9, Source: "LoCoMo paper"},
	{Model: "Mistral-7B", F1: 13.9, Source: "LoCoMo paper"},
}

// BaselineComparison compares a run's overall F1 against one baseline.
type BaselineComparison struct {
	Baseline   Baseline
	OurF1      float64
	Difference float64
}
