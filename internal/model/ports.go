package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the run pipeline from concrete storage
// implementations (SQLite, Redis). Each implementation satisfies one or
// more of these interfaces.

// BarStore persists and reads OHLC bars.
type BarStore interface {
	// WriteBars upserts bars for a symbol and returns the count written.
	WriteBars(ctx context.Context, symbol string, bars []Bar) (int, error)

	// ReadBars reads bars for a symbol ordered by index.
	// fromIndex is inclusive; limit <= 0 means no limit.
	ReadBars(ctx context.Context, symbol string, fromIndex, limit int) ([]Bar, error)

	// Close releases underlying resources.
	Close() error
}

// RunStore persists completed filter runs and their per-bar records.
type RunStore interface {
	// WriteRun writes the summary, its serialized parameters, and all
	// records in a single transaction.
	WriteRun(ctx context.Context, sum RunSummary, paramsJSON []byte, records []FilterRecord) error

	// ReadRun loads a run summary by ID.
	ReadRun(ctx context.Context, runID string) (RunSummary, error)

	// ReadRunParams loads the parameter JSON a run was produced with.
	ReadRunParams(ctx context.Context, runID string) ([]byte, error)

	// ReadRunRecords loads all records of a run ordered by index.
	ReadRunRecords(ctx context.Context, runID string) ([]FilterRecord, error)

	// ListRuns lists recent runs, newest first. Empty symbol lists all.
	ListRuns(ctx context.Context, symbol string, limit int) ([]RunSummary, error)

	// Close releases underlying resources.
	Close() error
}

// RunPublisher pushes completed runs to downstream consumers
// (e.g. Redis streams and pub/sub).
type RunPublisher interface {
	// PublishRun publishes the summary and streams every record.
	PublishRun(ctx context.Context, sum RunSummary, records []FilterRecord) error

	// Close releases underlying resources.
	Close() error
}

// SnapshotStore reads and writes engine snapshots as raw JSON.
// Using []byte avoids a model→filter→model import cycle.
type SnapshotStore interface {
	// SaveSnapshotJSON persists a JSON-encoded engine snapshot for a run.
	SaveSnapshotJSON(ctx context.Context, runID string, data []byte) error

	// ReadSnapshotJSON loads a run's snapshot as raw JSON.
	// Returns nil, nil if no snapshot exists.
	ReadSnapshotJSON(ctx context.Context, runID string) ([]byte, error)
}
