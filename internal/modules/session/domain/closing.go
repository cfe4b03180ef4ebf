package domain

import "time"

// PermanentNotes counts the notes recorded each time the session entered NOTES_COMPLETE.
func (s Session) PermanentNotes() int {
	n := 0
	for _, record := range s.StateHistory {
		if record.To == StateNotesComplete {
			n += countOf(record.Context["permanent_notes"])
		}
	}
	return n
}

// MetricsSummary is the closing snapshot stored with the SESSION_END transition.
func (s Session) MetricsSummary() map[string]any {
	summary := map[string]any{
		"duration_minutes":      s.DurationMinutes,
		"micro_loops":           len(s.MicroLoops),
		"pages_read":            s.PagesRead,
		"flashcards_created":    s.FlashcardsCreated,
		"ai_interactions":       s.AIInteractionsCount,
		"permanent_notes":       s.PermanentNotes(),
		"misconceptions_active": s.ActiveMisconceptions(),
	}
	if avg, ok := s.AverageRetrieval(); ok {
		summary["avg_retrieval"] = avg
	}
	return summary
}

// EndContext derives the SESSION_END inputs from the session itself.
func EndContext(s Session) Context {
	return Context{
		"metrics_summary": s.MetricsSummary(),
		"content_hashes": map[string]any{
			"recall_texts":       append([]string{}, s.ContentHashes.RecallTexts...),
			"feynman_texts":      append([]string{}, s.ContentHashes.FeynmanTexts...),
			"flashcard_contents": append([]string{}, s.ContentHashes.FlashcardContents...),
		},
	}
}

// Close moves the session into SESSION_END. With force, an illegal move is still recorded,
// marked as forced in its history entry. The second return value reports whether force was needed.
func (m Machine) Close(s *Session, force bool, now time.Time) (Result, bool) {
	if s.State == StateSessionEnd {
		return accepted(), false
	}
	if minutes := int(now.Sub(s.StartTime).Minutes()); minutes > 0 {
		s.DurationMinutes = minutes
	}
	ctx := EndContext(*s)
	res := m.Transition(s, StateSessionEnd, ctx, now)
	if res.Valid || !force {
		return res, false
	}
	ctx["forced"] = true
	ctx["forced_from"] = string(s.State)
	s.StateHistory = append(s.StateHistory, TransitionRecord{From: s.State, To: StateSessionEnd, Timestamp: now, Context: map[string]any(ctx)})
	s.State = StateSessionEnd
	s.StateEnteredAt = now
	s.LastActivity = now
	return accepted(), true
}

// Seal marks an ended session as archived.
func (m Machine) Seal(s *Session, now time.Time) Result {
	return m.Transition(s, StateArchived, nil, now)
}
