package out

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"osl/internal/modules/session/domain"
	sessionout "osl/internal/modules/session/port/out"
	apperrors "osl/internal/platform/errors"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// SQLiteSessionIndex projects archived sessions into a table for per-book queries.
// The archive is the source of truth; the index can always be rebuilt from it.
type SQLiteSessionIndex struct {
	db *sql.DB
}

func NewSQLiteSessionIndex(dbPath string) (sessionout.SessionIndex, error) {
	index, err := OpenSQLiteSessionIndex(dbPath)
	if err != nil {
		return nil, err
	}
	return index, nil
}

// OpenSQLiteSessionIndex is NewSQLiteSessionIndex returning the concrete type, so callers can Close it.
func OpenSQLiteSessionIndex(dbPath string) (*SQLiteSessionIndex, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, apperrors.Mark(apperrors.Wrap(err, "create index dir"), apperrors.ErrIOFailure)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, apperrors.Wrap(err, "open sqlite")
	}
	index := &SQLiteSessionIndex{db: db}
	if err := index.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return index, nil
}

func (s *SQLiteSessionIndex) Close() error {
	return s.db.Close()
}

func (s *SQLiteSessionIndex) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  book_id TEXT NOT NULL,
  book_title TEXT NOT NULL,
  session_type TEXT NOT NULL,
  started_at TEXT NOT NULL,
  duration_minutes INTEGER NOT NULL,
  micro_loops INTEGER NOT NULL,
  flashcards INTEGER NOT NULL,
  avg_retrieval REAL,
  final_state TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_book ON sessions(book_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return apperrors.Wrap(err, "create sessions table")
	}
	return nil
}

func (s *SQLiteSessionIndex) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return apperrors.Wrap(err, "reset sessions")
	}
	return nil
}

func (s *SQLiteSessionIndex) Upsert(ctx context.Context, session domain.Session) error {
	const stmt = `
INSERT INTO sessions (id, book_id, book_title, session_type, started_at, duration_minutes, micro_loops, flashcards, avg_retrieval, final_state)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  book_id=excluded.book_id,
  book_title=excluded.book_title,
  session_type=excluded.session_type,
  started_at=excluded.started_at,
  duration_minutes=excluded.duration_minutes,
  micro_loops=excluded.micro_loops,
  flashcards=excluded.flashcards,
  avg_retrieval=excluded.avg_retrieval,
  final_state=excluded.final_state;
`
	var avg sql.NullFloat64
	if v, ok := session.AverageRetrieval(); ok {
		avg = sql.NullFloat64{Float64: v, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, stmt,
		session.SessionID,
		session.BookID,
		session.BookTitle,
		string(session.SessionType),
		session.StartTime.UTC().Format(timeLayout),
		session.DurationMinutes,
		len(session.MicroLoops),
		session.FlashcardsCreated,
		avg,
		string(session.State),
	)
	if err != nil {
		return apperrors.Wrapf(err, "upsert session %s", session.SessionID)
	}
	return nil
}

func (s *SQLiteSessionIndex) BookStats(ctx context.Context, bookID string) (domain.BookStats, error) {
	const query = `
SELECT COUNT(*), COALESCE(SUM(duration_minutes), 0), COALESCE(SUM(flashcards), 0), AVG(avg_retrieval), MAX(started_at)
FROM sessions WHERE book_id = ?`
	var (
		stats   = domain.BookStats{BookID: bookID}
		avg     sql.NullFloat64
		lastRaw sql.NullString
	)
	if err := s.db.QueryRowContext(ctx, query, bookID).Scan(&stats.Sessions, &stats.TotalMinutes, &stats.Flashcards, &avg, &lastRaw); err != nil {
		return domain.BookStats{}, apperrors.Wrapf(err, "book stats %s", bookID)
	}
	if avg.Valid {
		stats.AvgRetrieval = avg.Float64
		stats.HasRetrieval = true
	}
	if lastRaw.Valid {
		last, err := time.Parse(timeLayout, lastRaw.String)
		if err != nil {
			return domain.BookStats{}, apperrors.Wrapf(err, "parse started_at %q", lastRaw.String)
		}
		stats.LastSession = &last
	}
	return stats, nil
}

func (s *SQLiteSessionIndex) Recent(ctx context.Context, limit int) ([]domain.IndexedSession, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, book_id, book_title, session_type, started_at, duration_minutes, micro_loops, flashcards, avg_retrieval, final_state
FROM sessions ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "query recent sessions")
	}
	defer rows.Close()

	out := []domain.IndexedSession{}
	for rows.Next() {
		var (
			row     domain.IndexedSession
			kind    string
			started string
			state   string
			avg     sql.NullFloat64
		)
		if err := rows.Scan(&row.SessionID, &row.BookID, &row.BookTitle, &kind, &started, &row.DurationMinutes, &row.MicroLoops, &row.Flashcards, &avg, &state); err != nil {
			return nil, apperrors.Wrap(err, "scan session row")
		}
		row.SessionType = domain.SessionType(kind)
		row.FinalState = domain.State(state)
		if row.StartTime, err = time.Parse(timeLayout, started); err != nil {
			return nil, apperrors.Wrapf(err, "parse started_at %q", started)
		}
		if avg.Valid {
			v := avg.Float64
			row.AvgRetrieval = &v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "iterate sessions")
	}
	return out, nil
}
