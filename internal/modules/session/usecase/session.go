package usecase

import (
	"context"
	"strings"
	"time"

	coachdto "osl/internal/modules/coach/dto"
	coachin "osl/internal/modules/coach/port/in"
	governancein "osl/internal/modules/governance/port/in"
	"osl/internal/modules/session/domain"
	sessiondto "osl/internal/modules/session/dto"
	sessionin "osl/internal/modules/session/port/in"
	"osl/internal/modules/session/service"
	apperrors "osl/internal/platform/errors"
)

type Interactor struct {
	svc        *service.SessionService
	coach      coachin.Usecase
	governance governancein.Usecase
}

func NewInteractor(svc *service.SessionService, coach coachin.Usecase, governance governancein.Usecase) sessionin.Usecase {
	return &Interactor{svc: svc, coach: coach, governance: governance}
}

func (i *Interactor) Start(ctx context.Context, input sessiondto.StartInput) (sessiondto.StartOutput, error) {
	if i.svc.HasActive(ctx) {
		return sessiondto.StartOutput{}, apperrors.WithHint(apperrors.ErrActiveSessionExists, "run 'osl session end' to close it first")
	}
	kind, err := domain.ParseSessionType(input.Type)
	if err != nil {
		return sessiondto.StartOutput{}, err
	}

	var (
		gates       []sessiondto.GateOutput
		gatesStatus map[string]string
	)
	if i.governance != nil {
		check, err := i.governance.Check(ctx)
		if err != nil {
			return sessiondto.StartOutput{}, err
		}
		gatesStatus = map[string]string{}
		failing := []string{}
		for _, v := range check.Verdicts {
			gates = append(gates, sessiondto.GateOutput{Gate: v.Gate, Passing: v.Passing, Status: v.Status})
			gatesStatus[v.Gate] = v.Status
			if !v.Passing && v.Critical {
				failing = append(failing, v.Gate)
			}
		}
		if check.Blocked() {
			return sessiondto.StartOutput{}, apperrors.WithHint(
				apperrors.Wrapf(apperrors.ErrSessionBlocked, "failing gates: %s", strings.Join(failing, ", ")),
				"address the failing gates first; see 'osl governance check' and 'osl metrics set'",
			)
		}
	}

	state, err := i.coach.Show(ctx)
	if err != nil {
		return sessiondto.StartOutput{}, err
	}
	book, err := pickBook(state.Books, input.Book)
	if err != nil {
		return sessiondto.StartOutput{}, err
	}
	maxCards := 0
	for _, t := range state.Thresholds {
		if t.Name == "max_new_cards" {
			maxCards = int(t.Current)
		}
	}

	session, err := i.svc.Start(ctx, service.StartRequest{
		BookID:        book.ID,
		BookTitle:     book.Title,
		Type:          kind,
		MaxFlashcards: maxCards,
		GatesStatus:   gatesStatus,
	})
	if err != nil {
		return sessiondto.StartOutput{}, err
	}
	return sessiondto.StartOutput{
		SessionID:     session.SessionID,
		BookID:        session.BookID,
		BookTitle:     session.BookTitle,
		Type:          string(session.SessionType),
		State:         string(session.State),
		MaxFlashcards: session.MaxFlashcards,
		StartedAt:     session.StartTime,
		Gates:         gates,
		NextActions:   toActions(domain.NextActions(session.State)),
	}, nil
}

// pickBook resolves a book by id or title. With no selector, a single tracked book is chosen.
func pickBook(books []coachdto.BookOutput, selector string) (coachdto.BookOutput, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		switch len(books) {
		case 0:
			return coachdto.BookOutput{}, apperrors.WithHint(
				apperrors.Wrap(apperrors.ErrInvalidInput, "no books are tracked"),
				"add one with 'osl book add'",
			)
		case 1:
			return books[0], nil
		default:
			ids := make([]string, 0, len(books))
			for _, b := range books {
				ids = append(ids, b.ID)
			}
			return coachdto.BookOutput{}, apperrors.Wrapf(apperrors.ErrInvalidInput, "several books tracked, choose one of: %s", strings.Join(ids, ", "))
		}
	}
	for _, b := range books {
		if b.ID == selector {
			return b, nil
		}
	}
	for _, b := range books {
		if strings.EqualFold(b.Title, selector) {
			return b, nil
		}
	}
	return coachdto.BookOutput{}, apperrors.Wrapf(apperrors.ErrNotFound, "book %q", selector)
}

func (i *Interactor) GetActive(ctx context.Context) (sessiondto.ActiveSessionOutput, error) {
	session, err := i.svc.Current(ctx)
	if err != nil {
		return sessiondto.ActiveSessionOutput{}, err
	}
	out := sessiondto.ActiveSessionOutput{
		SessionID:            session.SessionID,
		BookID:               session.BookID,
		BookTitle:            session.BookTitle,
		Type:                 string(session.SessionType),
		State:                string(session.State),
		StartedAt:            session.StartTime,
		StateEnteredAt:       session.StateEnteredAt,
		MicroLoops:           len(session.MicroLoops),
		PagesRead:            session.PagesRead,
		FlashcardsCreated:    session.FlashcardsCreated,
		MaxFlashcards:        session.MaxFlashcards,
		ActiveMisconceptions: session.ActiveMisconceptions(),
	}
	if avg, ok := session.AverageRetrieval(); ok {
		out.AvgRetrieval = &avg
	}
	return out, nil
}

func (i *Interactor) Transition(ctx context.Context, input sessiondto.TransitionInput) (sessiondto.TransitionOutput, error) {
	to, err := domain.ParseState(input.To)
	if err != nil {
		return sessiondto.TransitionOutput{}, err
	}
	outcome, err := i.svc.Transition(ctx, to, withTextHash(to, input.Context))
	if err != nil {
		return sessiondto.TransitionOutput{}, err
	}
	res := outcome.Result
	out := sessiondto.TransitionOutput{
		Valid:      res.Valid,
		From:       string(outcome.From),
		To:         string(to),
		State:      string(outcome.Session.State),
		Error:      res.Error,
		Suggestion: res.Suggestion,
		Allowed:    stateNames(res.Allowed),
		Missing:    res.Missing,
	}
	if !outcome.Timeout.Valid {
		out.TimeoutExceeded = true
		out.TimeoutMessage = outcome.Timeout.Error
	}
	if res.Valid {
		out.NextActions = toActions(domain.NextActions(outcome.Session.State))
	}
	return out, nil
}

// withTextHash fills in text_hash for recall and explanation entries when only the text is given.
func withTextHash(to domain.State, input map[string]any) domain.Context {
	ctx := domain.Context{}
	for k, v := range input {
		ctx[k] = v
	}
	field := ""
	switch to {
	case domain.StateRecallComplete:
		field = "recall_text"
	case domain.StateFeynmanComplete:
		field = "explanation_text"
	default:
		return ctx
	}
	text, ok := ctx[field].(string)
	if _, hashed := ctx["text_hash"]; ok && !hashed && strings.TrimSpace(text) != "" {
		ctx["text_hash"] = domain.HashText(text)
	}
	return ctx
}

func (i *Interactor) NextActions(ctx context.Context) (sessiondto.NextActionsOutput, error) {
	session, actions, err := i.svc.NextActions(ctx)
	if err != nil {
		return sessiondto.NextActionsOutput{}, err
	}
	return sessiondto.NextActionsOutput{SessionID: session.SessionID, State: string(session.State), Actions: toActions(actions)}, nil
}

func (i *Interactor) CheckTimeout(ctx context.Context) (sessiondto.TimeoutOutput, error) {
	session, res, err := i.svc.CheckTimeout(ctx)
	if err != nil {
		return sessiondto.TimeoutOutput{}, err
	}
	return sessiondto.TimeoutOutput{
		State:      string(session.State),
		EnteredAt:  session.StateEnteredAt,
		Exceeded:   !res.Valid,
		Message:    res.Error,
		Suggestion: res.Suggestion,
	}, nil
}

func (i *Interactor) RecordMisconception(ctx context.Context, input sessiondto.MisconceptionInput) (sessiondto.MisconceptionOutput, error) {
	m, err := i.svc.AddMisconception(ctx, input.Description, input.Source)
	if err != nil {
		return sessiondto.MisconceptionOutput{}, err
	}
	if _, err := i.coach.RecordMisconceptions(ctx, coachdto.MisconceptionDeltaInput{Identified: 1}); err != nil {
		return sessiondto.MisconceptionOutput{}, err
	}
	return toMisconception(m), nil
}

func (i *Interactor) ResolveMisconception(ctx context.Context, input sessiondto.ResolveMisconceptionInput) (sessiondto.MisconceptionOutput, error) {
	m, err := i.svc.ResolveMisconception(ctx, input.ID, input.Correction)
	if err != nil {
		return sessiondto.MisconceptionOutput{}, err
	}
	if _, err := i.coach.RecordMisconceptions(ctx, coachdto.MisconceptionDeltaInput{Resolved: 1}); err != nil {
		return sessiondto.MisconceptionOutput{}, err
	}
	return toMisconception(m), nil
}

// End closes the session, folds it into the coach record, archives it and re-runs the gates.
// It is safe to call again after a failure part way through: the coach record is updated once.
func (i *Interactor) End(ctx context.Context, input sessiondto.EndInput) (sessiondto.EndOutput, error) {
	session, res, forced, err := i.svc.Close(ctx, input.Force)
	if err != nil {
		return sessiondto.EndOutput{}, err
	}
	if !res.Valid {
		return sessiondto.EndOutput{
			SessionID:  session.SessionID,
			Error:      res.Error,
			Suggestion: res.Suggestion,
			Allowed:    stateNames(res.Allowed),
		}, nil
	}

	summary := coachdto.SessionSummaryInput{
		BookID:            session.BookID,
		Duration:          time.Duration(session.DurationMinutes) * time.Minute,
		PagesRead:         session.PagesRead,
		FlashcardsCreated: session.FlashcardsCreated,
		PermanentNotes:    session.PermanentNotes(),
		Interleaving:      session.SessionType == domain.TypeInterleaving,
	}
	if avg, ok := session.AverageRetrieval(); ok {
		summary.RetrievalAverage = &avg
	}
	var book coachdto.BookOutput
	if session.CoachRecorded {
		book, err = i.coach.GetBook(ctx, session.BookID)
	} else {
		book, err = i.coach.RecordSession(ctx, summary)
		if err == nil {
			session, err = i.svc.MarkRecorded(ctx, session)
		}
	}
	if err != nil {
		return sessiondto.EndOutput{}, err
	}

	archived, err := i.svc.Archive(ctx, session)
	if err != nil {
		return sessiondto.EndOutput{}, err
	}
	out := sessiondto.EndOutput{
		Valid:             true,
		SessionID:         session.SessionID,
		DurationMinutes:   session.DurationMinutes,
		Forced:            forced,
		ArchivePath:       archived.ArchivePath,
		NotePath:          archived.NotePath,
		BookNotePath:      archived.BookNote,
		BookCurrentPage:   book.CurrentPage,
		BookProgress:      book.Progress,
		FlashcardsCreated: session.FlashcardsCreated,
	}
	if i.governance != nil {
		if check, err := i.governance.Check(ctx); err == nil {
			out.GovernanceOverall = check.Overall
			for _, v := range check.Verdicts {
				if !v.Passing {
					out.GatesNeedAttention = true
				}
			}
		}
	}
	return out, nil
}

func (i *Interactor) Reindex(ctx context.Context) (int, error) {
	return i.svc.Reindex(ctx)
}

func (i *Interactor) BookStats(ctx context.Context, bookID string) (sessiondto.BookStatsOutput, error) {
	stats, err := i.svc.BookStats(ctx, bookID)
	if err != nil {
		return sessiondto.BookStatsOutput{}, err
	}
	out := sessiondto.BookStatsOutput{
		BookID:       stats.BookID,
		Sessions:     stats.Sessions,
		TotalMinutes: stats.TotalMinutes,
		Flashcards:   stats.Flashcards,
		LastSession:  stats.LastSession,
	}
	if stats.HasRetrieval {
		avg := stats.AvgRetrieval
		out.AvgRetrieval = &avg
	}
	return out, nil
}

func (i *Interactor) Recent(ctx context.Context, limit int) ([]sessiondto.IndexedSessionOutput, error) {
	rows, err := i.svc.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]sessiondto.IndexedSessionOutput, 0, len(rows))
	for _, row := range rows {
		out = append(out, sessiondto.IndexedSessionOutput{
			SessionID:       row.SessionID,
			BookID:          row.BookID,
			BookTitle:       row.BookTitle,
			Type:            string(row.SessionType),
			StartedAt:       row.StartTime,
			DurationMinutes: row.DurationMinutes,
			MicroLoops:      row.MicroLoops,
			Flashcards:      row.Flashcards,
			AvgRetrieval:    row.AvgRetrieval,
			FinalState:      string(row.FinalState),
		})
	}
	return out, nil
}

func toActions(actions []domain.Action) []sessiondto.ActionOutput {
	out := make([]sessiondto.ActionOutput, 0, len(actions))
	for _, a := range actions {
		out = append(out, sessiondto.ActionOutput{State: string(a.State), Label: a.Label, Command: a.Command})
	}
	return out
}

func stateNames(states []domain.State) []string {
	out := make([]string, 0, len(states))
	for _, s := range states {
		out = append(out, string(s))
	}
	return out
}

func toMisconception(m domain.Misconception) sessiondto.MisconceptionOutput {
	return sessiondto.MisconceptionOutput{
		ID:          m.ID,
		Description: m.Description,
		Source:      m.Source,
		DuringLoop:  m.DuringLoop,
		Resolved:    m.Resolved,
		Correction:  m.Correction,
	}
}
