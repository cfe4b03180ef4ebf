package domain

import "time"

// BookStats aggregates the archived sessions of one book.
type BookStats struct {
	BookID       string
	Sessions     int
	TotalMinutes int
	Flashcards   int
	AvgRetrieval float64
	HasRetrieval bool
	LastSession  *time.Time
}

// IndexedSession is one row of the archived-session projection.
type IndexedSession struct {
	SessionID       string
	BookID          string
	BookTitle       string
	SessionType     SessionType
	StartTime       time.Time
	DurationMinutes int
	MicroLoops      int
	Flashcards      int
	AvgRetrieval    *float64
	FinalState      State
}
