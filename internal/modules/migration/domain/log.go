package domain

import (
	"sort"
	"time"
)

const LogDocumentName = "migration_log"

// LogEntry records one migration attempt. Entries are only ever appended.
type LogEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	File        string    `json:"file"`
	FromVersion string    `json:"from_version"`
	ToVersion   string    `json:"to_version"`
	Success     bool      `json:"success"`
	Error       *string   `json:"error"`
}

type Log struct {
	Version        string     `json:"version"`
	Migrations     []LogEntry `json:"migrations"`
	LastMigration  *time.Time `json:"last_migration"`
	CurrentVersion string     `json:"current_version"`
}

func NewLog(current string) Log {
	return Log{Version: current, Migrations: []LogEntry{}, CurrentVersion: current}
}

// Append adds entry and moves last_migration forward on success.
func (l Log) Append(entry LogEntry) Log {
	l.Migrations = append(append([]LogEntry{}, l.Migrations...), entry)
	if entry.Success {
		ts := entry.Timestamp
		l.LastMigration = &ts
	}
	return l
}

type Report struct {
	CurrentVersion string
	Total          int
	Successful     int
	Failed         int
	LastMigration  *time.Time
	FilesMigrated  int
	Files          []string
	HistoryByFile  map[string][]LogEntry
}

func BuildReport(log Log, current string) Report {
	report := Report{
		CurrentVersion: current,
		Total:          len(log.Migrations),
		LastMigration:  log.LastMigration,
		HistoryByFile:  map[string][]LogEntry{},
	}
	for _, entry := range log.Migrations {
		if entry.Success {
			report.Successful++
		}
		report.HistoryByFile[entry.File] = append(report.HistoryByFile[entry.File], entry)
	}
	report.Failed = report.Total - report.Successful
	for file := range report.HistoryByFile {
		report.Files = append(report.Files, file)
	}
	sort.Strings(report.Files)
	report.FilesMigrated = len(report.Files)
	return report
}
