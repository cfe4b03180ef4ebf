package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "osl/internal/platform/errors"
)

// State is a step of the study protocol.
type State string

const (
	StateNone            State = "NONE"
	StateSessionInit     State = "SESSION_INIT"
	StatePreview         State = "PREVIEW"
	StateReading         State = "READING"
	StateRecallPending   State = "RECALL_PENDING"
	StateRecallActive    State = "RECALL_ACTIVE"
	StateRecallComplete  State = "RECALL_COMPLETE"
	StateFeynmanPending  State = "FEYNMAN_PENDING"
	StateFeynmanActive   State = "FEYNMAN_ACTIVE"
	StateFeynmanComplete State = "FEYNMAN_COMPLETE"
	StateTutorQAPending  State = "TUTOR_QA_PENDING"
	StateTutorQAActive   State = "TUTOR_QA_ACTIVE"
	StateTutorQAComplete State = "TUTOR_QA_COMPLETE"
	StateCardsPending    State = "CARDS_PENDING"
	StateCardsActive     State = "CARDS_ACTIVE"
	StateCardsComplete   State = "CARDS_COMPLETE"
	StateNotesPending    State = "NOTES_PENDING"
	StateNotesActive     State = "NOTES_ACTIVE"
	StateNotesComplete   State = "NOTES_COMPLETE"
	StateSessionEnd      State = "SESSION_END"
	StateArchived        State = "ARCHIVED"
)

var states = []State{
	StateNone, StateSessionInit, StatePreview, StateReading,
	StateRecallPending, StateRecallActive, StateRecallComplete,
	StateFeynmanPending, StateFeynmanActive, StateFeynmanComplete,
	StateTutorQAPending, StateTutorQAActive, StateTutorQAComplete,
	StateCardsPending, StateCardsActive, StateCardsComplete,
	StateNotesPending, StateNotesActive, StateNotesComplete,
	StateSessionEnd, StateArchived,
}

// States lists every workflow state in protocol order.
func States() []State {
	out := make([]State, len(states))
	copy(out, states)
	return out
}

// ParseState accepts a state name in any case, with dashes or underscores.
func ParseState(raw string) (State, error) {
	name := State(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")))
	for _, s := range states {
		if s == name {
			return s, nil
		}
	}
	return "", apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown workflow state %q", raw)
}

// Label renders a state the way suggestions refer to it: "recall pending".
func (s State) Label() string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

var transitions = map[State][]State{
	StateNone:            {StateSessionInit},
	StateSessionInit:     {StatePreview, StateReading},
	StatePreview:         {StateReading},
	StateReading:         {StateRecallPending},
	StateRecallPending:   {StateRecallActive},
	StateRecallActive:    {StateRecallComplete},
	StateRecallComplete:  {StateFeynmanPending},
	StateFeynmanPending:  {StateFeynmanActive},
	StateFeynmanActive:   {StateFeynmanComplete},
	StateFeynmanComplete: {StateTutorQAPending},
	StateTutorQAPending:  {StateTutorQAActive},
	StateTutorQAActive:   {StateTutorQAComplete},
	StateTutorQAComplete: {StateCardsPending},
	StateCardsPending:    {StateCardsActive},
	StateCardsActive:     {StateCardsComplete},
	StateCardsComplete:   {StateReading, StateNotesPending},
	StateNotesPending:    {StateNotesActive},
	StateNotesActive:     {StateNotesComplete},
	StateNotesComplete:   {StateSessionEnd},
	StateSessionEnd:      {StateArchived},
}

var requiredInputs = map[State][]string{
	StateSessionInit:     {"book_id", "book_title"},
	StatePreview:         {"curiosity_questions"},
	StateReading:         {"pages_read"},
	StateRecallComplete:  {"recall_text", "duration_seconds", "text_hash"},
	StateFeynmanComplete: {"explanation_text", "text_hash"},
	StateTutorQAComplete: {"answers", "confidence_ratings"},
	StateCardsComplete:   {"cards_created", "from_misses"},
	StateNotesComplete:   {"permanent_notes"},
	StateSessionEnd:      {"metrics_summary", "content_hashes"},
}

var timeouts = map[State]time.Duration{
	StateRecallActive:  300 * time.Second,
	StateFeynmanActive: 300 * time.Second,
	StateTutorQAActive: 600 * time.Second,
	StateCardsActive:   600 * time.Second,
}

// Allowed returns the legal successors of from. Terminal states have none.
func Allowed(from State) []State {
	next := transitions[from]
	out := make([]State, len(next))
	copy(out, next)
	return out
}

// RequiredInputs lists the context keys that must be supplied to enter to.
func RequiredInputs(to State) []string {
	req := requiredInputs[to]
	out := make([]string, len(req))
	copy(out, req)
	return out
}

// Timeout reports the advisory time budget of a state.
func Timeout(state State) (time.Duration, bool) {
	d, ok := timeouts[state]
	return d, ok
}

// Context carries the caller-supplied inputs of a proposed transition.
type Context map[string]any

// Limits are the minimum-content rules applied on completion states.
type Limits struct {
	RecallWords          int
	ExplanationSentences int
	CuriosityQuestions   int
	MaxCards             int
	MissRatio            float64
}

func DefaultLimits() Limits {
	return Limits{
		RecallWords:          50,
		ExplanationSentences: 3,
		CuriosityQuestions:   3,
		MaxCards:             DefaultMaxFlashcards,
		MissRatio:            0.6,
	}
}

// LimitsFor narrows the card cap to what the session has left.
func LimitsFor(s Session) Limits {
	limits := DefaultLimits()
	capacity := s.MaxFlashcards
	if capacity <= 0 {
		capacity = DefaultMaxFlashcards
	}
	limits.MaxCards = capacity - s.FlashcardsCreated
	if limits.MaxCards < 0 {
		limits.MaxCards = 0
	}
	return limits
}

// Result is the outcome of a validation. A rejected transition is a Result, not an error.
type Result struct {
	Valid      bool     `json:"valid"`
	Error      string   `json:"error,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Allowed    []State  `json:"allowed,omitempty"`
	Missing    []string `json:"missing,omitempty"`
}

func accepted() Result {
	return Result{Valid: true}
}

func rejected(format string, args ...any) Result {
	return Result{Valid: false, Error: fmt.Sprintf(format, args...)}
}

// Machine validates and applies workflow transitions.
type Machine struct {
	limits Limits
}

func NewMachine(limits Limits) Machine {
	return Machine{limits: limits}
}

// Validate checks legality, required inputs and minimum content. It has no side effects.
func (m Machine) Validate(from, to State, ctx Context) Result {
	allowed := transitions[from]
	if !containsState(allowed, to) {
		res := rejected("Invalid transition: %s -> %s", from, to)
		res.Allowed = Allowed(from)
		res.Suggestion = suggestion(from, to)
		return res
	}
	if missing := missingInputs(to, ctx); len(missing) > 0 {
		res := rejected("Missing required inputs for %s: %s", to, strings.Join(missing, ", "))
		res.Missing = missing
		res.Suggestion = fmt.Sprintf("Provide the following before entering %s: %s", to, strings.Join(missing, ", "))
		return res
	}
	return m.checkMinimums(to, ctx)
}

func (m Machine) checkMinimums(to State, ctx Context) Result {
	switch to {
	case StatePreview:
		n := countOf(ctx["curiosity_questions"])
		if n < m.limits.CuriosityQuestions {
			res := rejected("Too few curiosity questions: %d (minimum: %d)", n, m.limits.CuriosityQuestions)
			res.Suggestion = fmt.Sprintf("Write at least %d questions about what you expect to learn", m.limits.CuriosityQuestions)
			return res
		}
	case StateRecallComplete:
		text := textOf(ctx["recall_text"])
		words := len(strings.Fields(text))
		if words < m.limits.RecallWords {
			res := rejected("Recall text too short: %d words (minimum: %d)", words, m.limits.RecallWords)
			res.Suggestion = fmt.Sprintf("Continue recall until you have at least %d words", m.limits.RecallWords)
			return res
		}
		if !Verify(text, textOf(ctx["text_hash"])) {
			res := rejected("Recall text does not match its hash")
			res.Suggestion = "Submit the recall text exactly as written"
			return res
		}
	case StateFeynmanComplete:
		text := textOf(ctx["explanation_text"])
		n := countSentences(text)
		if n < m.limits.ExplanationSentences {
			res := rejected("Explanation too brief: %d sentences (minimum: %d)", n, m.limits.ExplanationSentences)
			res.Suggestion = fmt.Sprintf("Expand your explanation to at least %d complete sentences", m.limits.ExplanationSentences)
			return res
		}
		if !Verify(text, textOf(ctx["text_hash"])) {
			res := rejected("Explanation text does not match its hash")
			res.Suggestion = "Submit the explanation exactly as written"
			return res
		}
	case StateCardsComplete:
		return m.checkCards(ctx)
	}
	return accepted()
}

func (m Machine) checkCards(ctx Context) Result {
	cards, okCards := numberOf(ctx["cards_created"])
	misses, okMisses := numberOf(ctx["from_misses"])
	if !okCards || !okMisses || cards < 0 || misses < 0 || cards != math.Trunc(cards) || misses != math.Trunc(misses) {
		res := rejected("cards_created and from_misses must be non-negative whole numbers")
		res.Suggestion = "Report how many cards you wrote and how many came from gaps"
		return res
	}
	if misses > cards {
		res := rejected("from_misses (%d) cannot exceed cards_created (%d)", int(misses), int(cards))
		res.Suggestion = "Count only cards you actually created"
		return res
	}
	if int(cards) > m.limits.MaxCards {
		res := rejected("Too many cards created: %d (maximum: %d)", int(cards), m.limits.MaxCards)
		res.Suggestion = fmt.Sprintf("Limit cards to %d per session", m.limits.MaxCards)
		return res
	}
	if cards > 0 {
		ratio := misses / cards
		if ratio < m.limits.MissRatio {
			res := rejected("Insufficient cards from gaps: %.0f%% (minimum: %.0f%%)", ratio*100, m.limits.MissRatio*100)
			res.Suggestion = "Create more cards from identified knowledge gaps"
			return res
		}
	}
	return accepted()
}

// Transition validates and, only on success, moves s to the target state and records it.
func (m Machine) Transition(s *Session, to State, ctx Context, now time.Time) Result {
	res := m.Validate(s.State, to, ctx)
	if !res.Valid {
		return res
	}
	record := TransitionRecord{From: s.State, To: to, Timestamp: now}
	if len(ctx) > 0 {
		record.Context = map[string]any(copyContext(ctx))
	}
	s.StateHistory = append(s.StateHistory, record)
	applyEffects(s, to, ctx, now)
	s.State = to
	s.StateEnteredAt = now
	s.LastActivity = now
	return res
}

// ValidateTimeout reports whether state has run past its budget. It never enforces anything.
func ValidateTimeout(state State, enteredAt, now time.Time) Result {
	budget, ok := timeouts[state]
	if !ok || enteredAt.IsZero() {
		return accepted()
	}
	elapsed := now.Sub(enteredAt)
	if elapsed > budget {
		res := rejected("State %s timeout exceeded: %.0fs > %.0fs", state, elapsed.Seconds(), budget.Seconds())
		res.Suggestion = "Complete the current activity or save progress"
		return res
	}
	return accepted()
}

// Action is a legal next step with a human label and the command that performs it.
type Action struct {
	State   State
	Label   string
	Command string
}

var actionLabels = map[State]string{
	StateRecallActive:  "Start free recall",
	StateFeynmanActive: "Begin Feynman explanation",
	StateTutorQAActive: "Get AI questions",
	StateCardsActive:   "Create flashcards",
	StateNotesActive:   "Create permanent notes",
	StateSessionEnd:    "End session",
	StateReading:       "Continue reading",
}

// NextActions lists the legal successors of from in table order.
func NextActions(from State) []Action {
	next := transitions[from]
	actions := make([]Action, 0, len(next))
	for _, s := range next {
		label, ok := actionLabels[s]
		if !ok {
			label = "Proceed to " + s.Label()
		}
		command := "osl session transition " + strings.ToLower(string(s))
		if s == StateSessionEnd {
			command = "osl session end"
		}
		actions = append(actions, Action{State: s, Label: label, Command: command})
	}
	return actions
}

func suggestion(from, to State) string {
	switch {
	case from == StateReading && to == StateCardsPending:
		return "Complete recall and Feynman explanation before creating flashcards"
	case from == StateSessionInit && to == StateRecallPending:
		return "Read material before attempting recall"
	case to == StateTutorQAPending && strings.HasPrefix(string(from), "RECALL"):
		return "Complete both recall and Feynman explanation before AI questions"
	}
	if next := transitions[from]; len(next) > 0 {
		return "Next valid action: " + next[0].Label()
	}
	return fmt.Sprintf("Complete %s activities first", from.Label())
}

func applyEffects(s *Session, to State, ctx Context, now time.Time) {
	switch to {
	case StatePreview:
		s.CuriosityQuestions = append(s.CuriosityQuestions, stringsOf(ctx["curiosity_questions"])...)
	case StateReading:
		pages, _ := numberOf(ctx["pages_read"])
		s.PagesRead += int(pages)
		label := textOf(ctx["pages"])
		if label == "" {
			label = fmt.Sprintf("%d pages", int(pages))
		}
		s.MicroLoops = append(s.MicroLoops, MicroLoop{
			LoopID:    len(s.MicroLoops) + 1,
			Pages:     label,
			ChunkType: "standard",
			StartTime: now,
		})
	case StateRecallComplete:
		secs, _ := numberOf(ctx["duration_seconds"])
		s.TotalRecallTime += int(secs)
		hash := textOf(ctx["text_hash"])
		s.ContentHashes.RecallTexts = append(s.ContentHashes.RecallTexts, hash)
		if loop := s.CurrentLoop(); loop != nil {
			loop.RecallHash = hash
		}
	case StateFeynmanComplete:
		if secs, ok := numberOf(ctx["duration_seconds"]); ok {
			s.TotalExplanationTime += int(secs)
		}
		hash := textOf(ctx["text_hash"])
		s.ContentHashes.FeynmanTexts = append(s.ContentHashes.FeynmanTexts, hash)
		if loop := s.CurrentLoop(); loop != nil {
			loop.ExplanationHash = hash
		}
	case StateTutorQAComplete:
		s.AIInteractionsCount++
		if score, ok := numberOf(ctx["retrieval_score"]); ok {
			s.RetrievalScores = append(s.RetrievalScores, score)
			if loop := s.CurrentLoop(); loop != nil {
				loop.RetrievalScore = &score
			}
		}
	case StateCardsComplete:
		cards, _ := numberOf(ctx["cards_created"])
		s.FlashcardsCreated += int(cards)
		s.ContentHashes.FlashcardContents = append(s.ContentHashes.FlashcardContents, stringsOf(ctx["card_hashes"])...)
		if loop := s.CurrentLoop(); loop != nil && loop.EndTime == nil {
			end := now
			loop.EndTime = &end
		}
	}
}

func missingInputs(to State, ctx Context) []string {
	missing := []string{}
	for _, key := range requiredInputs[to] {
		if !present(ctx[key]) {
			missing = append(missing, key)
		}
	}
	return missing
}

// present treats absent, nil, blank strings and empty collections as missing. Zero numbers count.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case map[string]string:
		return len(t) > 0
	default:
		return true
	}
}

func containsState(list []State, s State) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func countSentences(text string) int {
	n := 0
	for _, part := range strings.Split(text, ".") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

func textOf(v any) string {
	s, _ := v.(string)
	return s
}

func numberOf(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func countOf(v any) int {
	switch t := v.(type) {
	case []any:
		return len(t)
	case []string:
		return len(t)
	default:
		if n, ok := numberOf(v); ok {
			return int(n)
		}
		return 0
	}
}

func stringsOf(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string{}, t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func copyContext(ctx Context) Context {
	out := make(Context, len(ctx))
	for k, v := range ctx {
		out[k] = v
	}
	return out
}
