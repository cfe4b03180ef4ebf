package dto

import "time"

type StartInput struct {
	Book string
	Type string
}

type GateOutput struct {
	Gate    string
	Passing bool
	Status  string
}

type ActionOutput struct {
	State   string
	Label   string
	Command string
}

type StartOutput struct {
	SessionID     string
	BookID        string
	BookTitle     string
	Type          string
	State         string
	MaxFlashcards int
	StartedAt     time.Time
	Gates         []GateOutput
	NextActions   []ActionOutput
}

type ActiveSessionOutput struct {
	SessionID            string
	BookID               string
	BookTitle            string
	Type                 string
	State                string
	StartedAt            time.Time
	StateEnteredAt       time.Time
	MicroLoops           int
	PagesRead            int
	FlashcardsCreated    int
	MaxFlashcards        int
	AvgRetrieval         *float64
	ActiveMisconceptions int
}

type TransitionInput struct {
	To      string
	Context map[string]any
}

// TransitionOutput reports an accepted or rejected move. Rejection is not an error.
type TransitionOutput struct {
	Valid           bool
	From            string
	To              string
	State           string
	Error           string
	Suggestion      string
	Allowed         []string
	Missing         []string
	TimeoutExceeded bool
	TimeoutMessage  string
	NextActions     []ActionOutput
}

type NextActionsOutput struct {
	SessionID string
	State     string
	Actions   []ActionOutput
}

type TimeoutOutput struct {
	State      string
	EnteredAt  time.Time
	Exceeded   bool
	Message    string
	Suggestion string
}

type MisconceptionInput struct {
	Description string
	Source      string
}

type ResolveMisconceptionInput struct {
	ID         string
	Correction string
}

type MisconceptionOutput struct {
	ID          string
	Description string
	Source      string
	DuringLoop  int
	Resolved    bool
	Correction  string
}

type EndInput struct {
	Force bool
}

type EndOutput struct {
	Valid              bool
	Error              string
	Suggestion         string
	Allowed            []string
	SessionID          string
	DurationMinutes    int
	Forced             bool
	ArchivePath        string
	NotePath           string
	BookNotePath       string
	BookCurrentPage    int
	BookProgress       float64
	FlashcardsCreated  int
	GovernanceOverall  string
	GatesNeedAttention bool
}

type BookStatsOutput struct {
	BookID       string
	Sessions     int
	TotalMinutes int
	Flashcards   int
	AvgRetrieval *float64
	LastSession  *time.Time
}

type IndexedSessionOutput struct {
	SessionID       string
	BookID          string
	BookTitle       string
	Type            string
	StartedAt       time.Time
	DurationMinutes int
	MicroLoops      int
	Flashcards      int
	AvgRetrieval    *float64
	FinalState      string
}
