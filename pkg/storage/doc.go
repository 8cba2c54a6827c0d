// Package storage persists the per-workspace timer settings and the
// worklog journal.
//
// # Backends
//
//   - SQLite: durable storage, driver "sqlite" (pure Go) or "sqlite3" (cgo)
//   - Memory: in-process storage for tests and throwaway runs
//
// Settings are stored as JSON under the key "settings/<workspace id>" so
// the record survives schema changes. Journal entries are rows keyed by a
// UUID. The retention subpackage prunes old journal entries on a cron
// schedule.
//
// # Basic Usage
//
//	store, err := storage.Open(cfg.Storage, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	settings, err := store.LoadSettings(ctx, workspaceID)
//	if errors.Is(err, storage.ErrNotFound) {
//	    settings = storage.DefaultSettings(cfg.Automation)
//	}
package storage
