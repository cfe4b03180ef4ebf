package dto

import "time"

type FileOutput struct {
	Path        string
	FromVersion string
	ToVersion   string
	Migrated    bool
	Backup      string
	Error       string
}

type MigrateAllOutput struct {
	CurrentVersion string
	Files          []FileOutput
	Failed         int
}

type PendingOutput struct {
	Path    string
	Version string
}

type ReportOutput struct {
	CurrentVersion string
	Total          int
	Successful     int
	Failed         int
	LastMigration  *time.Time
	FilesMigrated  int
	Files          []string
}
