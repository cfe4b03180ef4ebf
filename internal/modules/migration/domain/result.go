package domain

// FileResult describes what happened to one document during a migration run.
type FileResult struct {
	Path        string
	FromVersion string
	ToVersion   string
	Migrated    bool
	Backup      string
	Err         error
}

func (r FileResult) Success() bool {
	return r.Err == nil
}
