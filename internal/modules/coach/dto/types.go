package dto

import "time"

type InitInput struct {
	Force bool
}

type InitOutput struct {
	Version string
	Created []string
}

type BookOutput struct {
	ID                  string
	Title               string
	Author              string
	CurrentPage         int
	TotalPages          int
	Progress            float64
	SessionsCompleted   int
	TotalHours          float64
	AvgRetrievalScore   float64
	LastSession         *time.Time
	LastTransferProject *time.Time
}

type ThresholdOutput struct {
	Name         string
	Min          float64
	Current      float64
	Max          float64
	LastAdjusted time.Time
}

type GovernanceOutput struct {
	CalibrationGate   string
	CardDebtGate      string
	TransferGate      string
	InterleavingGate  string
	OverallState      string
	RecoveryState     string
	RemediationActive bool
	LastGateTrigger   *time.Time
}

type MetricsOutput struct {
	AvgRetrieval7d           float64
	AvgPredictionAccuracy7d  float64
	CardDebtRatio            float64
	DailyReviewThroughput    int
	CardsDue                 int
	CardsCompletedToday      int
	InterleavingSessionsWeek int
	TotalPermanentNotes      int
	TotalFlashcards          int
	MisconceptionsActive     int
	MisconceptionsResolved   int
	LastTransferProject      *time.Time
}

type StateOutput struct {
	Version     string
	LastUpdated time.Time
	Books       []BookOutput
	Thresholds  []ThresholdOutput
	Governance  GovernanceOutput
	Metrics     MetricsOutput
}

type AddBookInput struct {
	Title       string
	Author      string
	TotalPages  int
	CurrentPage int
	PDFPath     string
}

type TuneThresholdInput struct {
	Name  string
	Value float64
}

// MetricsInput patches performance metrics; nil fields are left alone.
type MetricsInput struct {
	AvgRetrieval7d           *float64
	AvgPredictionAccuracy7d  *float64
	DailyReviewThroughput    *int
	CardsDue                 *int
	InterleavingSessionsWeek *int
}

// SessionSummaryInput is what a finished session contributes to the coach record.
type SessionSummaryInput struct {
	BookID            string
	Duration          time.Duration
	PagesRead         int
	RetrievalAverage  *float64
	FlashcardsCreated int
	PermanentNotes    int
	Interleaving      bool
}

type MisconceptionDeltaInput struct {
	Identified int
	Resolved   int
}
