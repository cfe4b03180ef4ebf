package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/schema"
)

const DocumentName = "coach_state"

type GateStatus string

const (
	GatePassing GateStatus = "passing"
	GateFailing GateStatus = "failing"
)

// OverallState is the instantaneous governance classification produced by gate evaluation.
type OverallState string

const (
	OverallNormal      OverallState = "NORMAL"
	OverallRemediation OverallState = "REMEDIATION"
	OverallBlocked     OverallState = "BLOCKED"
)

type BookRecord struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Author              string     `json:"author"`
	StartDate           time.Time  `json:"start_date"`
	CurrentPage         int        `json:"current_page"`
	TotalPages          int        `json:"total_pages"`
	SessionsCompleted   int        `json:"sessions_completed"`
	TotalHours          float64    `json:"total_hours"`
	AvgRetrievalScore   float64    `json:"avg_retrieval_score"`
	LastSession         *time.Time `json:"last_session"`
	LastTransferProject *time.Time `json:"last_transfer_project,omitempty"`
}

// Progress is the percentage of pages read, 0 when the page count is unknown.
func (b BookRecord) Progress() float64 {
	if b.TotalPages <= 0 {
		return 0
	}
	return float64(b.CurrentPage) / float64(b.TotalPages) * 100
}

func (b BookRecord) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("book id is required")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book title is required")
	}
	if b.TotalPages < 0 || b.CurrentPage < 0 {
		return fmt.Errorf("book %s: page counts must be non-negative", b.ID)
	}
	if b.TotalPages > 0 && b.CurrentPage > b.TotalPages {
		return fmt.Errorf("book %s: current page %d exceeds total %d", b.ID, b.CurrentPage, b.TotalPages)
	}
	return nil
}

type GovernanceStatus struct {
	CalibrationGate   GateStatus    `json:"calibration_gate"`
	CardDebtGate      GateStatus    `json:"card_debt_gate"`
	TransferGate      GateStatus    `json:"transfer_gate"`
	InterleavingGate  GateStatus    `json:"interleaving_gate"`
	OverallState      OverallState  `json:"overall_state"`
	LastGateTrigger   *time.Time    `json:"last_gate_trigger"`
	RemediationActive bool          `json:"remediation_active"`
	RecoveryState     RecoveryState `json:"recovery_state"`
}

type PerformanceMetrics struct {
	AvgRetrieval7d           float64    `json:"7d_avg_retrieval"`
	AvgPredictionAccuracy7d  float64    `json:"7d_avg_prediction_accuracy"`
	CurrentCardDebtRatio     float64    `json:"current_card_debt_ratio"`
	DailyReviewThroughput    int        `json:"daily_review_throughput"`
	CardsDue                 int        `json:"cards_due"`
	CardsCompletedToday      int        `json:"cards_completed_today"`
	LastTransferProject      *time.Time `json:"last_transfer_project"`
	InterleavingSessionsWeek int        `json:"interleaving_sessions_week"`
	TotalPermanentNotes      int        `json:"total_permanent_notes"`
	TotalFlashcards          int        `json:"total_flashcards"`
	MisconceptionsActive     int        `json:"misconceptions_active"`
	MisconceptionsResolved   int        `json:"misconceptions_resolved"`
}

// CardDebtRatio is cards due divided by daily review throughput.
func (m PerformanceMetrics) CardDebtRatio() float64 {
	if m.DailyReviewThroughput <= 0 {
		return 0
	}
	return float64(m.CardsDue) / float64(m.DailyReviewThroughput)
}

type ReviewSchedule struct {
	NextInterleaving *time.Time `json:"next_interleaving"`
	NextCalibration  *time.Time `json:"next_calibration"`
	NextSynthesis    *time.Time `json:"next_synthesis"`
	NextProjectDue   *time.Time `json:"next_project_due"`
	DailyReviewTime  string     `json:"daily_review_time"`
}

// CoachState is the single long-lived record of study progress and governance.
type CoachState struct {
	Version              string               `json:"version"`
	LastUpdated          time.Time            `json:"last_updated"`
	ActiveBooks          []BookRecord         `json:"active_books"`
	GovernanceThresholds GovernanceThresholds `json:"governance_thresholds"`
	GovernanceStatus     GovernanceStatus     `json:"governance_status"`
	PerformanceMetrics   PerformanceMetrics   `json:"performance_metrics"`
	ReviewSchedule       ReviewSchedule       `json:"review_schedule"`
	LastMigration        *time.Time           `json:"last_migration,omitempty"`
}

// NewCoachState returns a fresh document at the current schema version.
func NewCoachState(now time.Time) CoachState {
	return CoachState{
		Version:              schema.Current,
		LastUpdated:          now,
		ActiveBooks:          []BookRecord{},
		GovernanceThresholds: DefaultThresholds(now),
		GovernanceStatus: GovernanceStatus{
			CalibrationGate:  GatePassing,
			CardDebtGate:     GatePassing,
			TransferGate:     GatePassing,
			InterleavingGate: GatePassing,
			OverallState:     OverallNormal,
			RecoveryState:    RecoveryNormal,
		},
		PerformanceMetrics: PerformanceMetrics{DailyReviewThroughput: 60},
		ReviewSchedule:     ReviewSchedule{DailyReviewTime: "07:00"},
	}
}

// Validate rejects documents that must never be persisted.
func (c CoachState) Validate() error {
	if err := schema.Check(c.Version); err != nil {
		return err
	}
	if err := c.GovernanceThresholds.Validate(); err != nil {
		return err
	}
	seen := map[string]struct{}{}
	for _, book := range c.ActiveBooks {
		if err := book.Validate(); err != nil {
			return apperrors.Mark(err, apperrors.ErrInvalidInput)
		}
		if _, ok := seen[book.ID]; ok {
			return apperrors.Wrapf(apperrors.ErrInvalidInput, "duplicate book id %s", book.ID)
		}
		seen[book.ID] = struct{}{}
	}
	if c.GovernanceStatus.RecoveryState != "" {
		if _, err := ParseRecoveryState(string(c.GovernanceStatus.RecoveryState)); err != nil {
			return err
		}
	}
	return nil
}

// Book finds a book by id.
func (c *CoachState) Book(id string) (*BookRecord, bool) {
	for i := range c.ActiveBooks {
		if c.ActiveBooks[i].ID == id {
			return &c.ActiveBooks[i], true
		}
	}
	return nil, false
}
