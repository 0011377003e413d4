package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"abstractor/internal/config"
)

// Store manages search persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the search database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.QueueDBPath())
}

// OpenPath opens the database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewSearch inserts a new pending search for a property.
func (s *Store) NewSearch(ctx context.Context, address, county, parcel string) (*Search, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.New("property address is required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO searches (
            property_address, county, parcel_number, status,
            progress_percent, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		address,
		nullableString(county),
		nullableString(parcel),
		StatusPending,
		0.0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert search: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a search by identifier. Returns nil when no row exists.
func (s *Store) GetByID(ctx context.Context, id int64) (*Search, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+searchColumns+` FROM searches WHERE id = ?`, id)
	search, err := scanSearch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get search: %w", err)
	}
	return search, nil
}

// Update persists changes to an existing search. Progress is clamped to the
// ceiling of the row's status before writing so no caller can exceed it.
func (s *Store) Update(ctx context.Context, search *Search) error {
	if search == nil {
		return errors.New("search is nil")
	}
	if ceiling := ProgressCeiling(search.Status); search.ProgressPercent > ceiling {
		search.ProgressPercent = ceiling
	}
	search.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE searches
         SET property_address = ?, county = ?, parcel_number = ?, status = ?,
             progress_percent = ?, status_message = ?, retry_count = ?, checkpoint = ?,
             error_log = ?, chain_entries_json = ?, encumbrances_json = ?, result_json = ?,
             partial = ?, cancel_requested = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		search.PropertyAddress,
		nullableString(search.County),
		nullableString(search.ParcelNumber),
		search.Status,
		search.ProgressPercent,
		nullableString(search.StatusMessage),
		search.RetryCount,
		nullableString(string(search.Checkpoint)),
		nullableString(search.ErrorLogJSON),
		nullableString(search.ChainEntriesJSON),
		nullableString(search.EncumbrancesJSON),
		nullableString(search.ResultJSON),
		boolToInt(search.Partial),
		boolToInt(search.CancelRequested),
		search.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(search.LastHeartbeat),
		search.ID,
	)
	if err != nil {
		return fmt.Errorf("update search: %w", err)
	}
	return nil
}

// List returns searches filtered by status set (or all when none is given).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Search, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + searchColumns + ` FROM searches`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	defer rows.Close()

	var searches []*Search
	for rows.Next() {
		search, err := scanSearch(rows)
		if err != nil {
			return nil, err
		}
		searches = append(searches, search)
	}
	return searches, rows.Err()
}

// NextForStatuses returns the oldest search matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Search, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + searchColumns + ` FROM searches WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	search, err := scanSearch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return search, nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight search.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE searches SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing requeues searches stuck in a processing stage once
// their heartbeats expire. Checkpoints are preserved so the retry resumes
// where the lost worker left off.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE searches
        SET status = ?, status_message = 'Reclaimed from stale processing',
            last_heartbeat = NULL, updated_at = ?
        WHERE status IN (?, ?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusQueued,
		now.Format(time.RFC3339Nano),
		StatusScraping,
		StatusAnalyzing,
		StatusGenerating,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale searches: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing requeues all searches left in a processing stage, used
// on daemon startup after an unclean shutdown.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE searches
         SET status = ?, status_message = 'Reset from stuck processing',
             last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusScraping,
		StatusAnalyzing,
		StatusGenerating,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck searches: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of searches grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM searches GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("search stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending, StatusQueued:
			health.Pending += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		case StatusCancelled:
			health.Cancelled += count
		default:
			if _, ok := processingStatuses[status]; ok {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the search database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("search database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat search database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("search database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("search database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping search database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'searches'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
		} else {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM searches")
		if err := row.Scan(&health.TotalSearches); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count searches: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

// Remove deletes a search by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM searches WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete search: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed searches from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM searches WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all searches from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM searches`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

const searchColumns = "id, property_address, county, parcel_number, status, progress_percent, status_message, retry_count, checkpoint, error_log, chain_entries_json, encumbrances_json, result_json, partial, cancel_requested, created_at, updated_at, last_heartbeat"

func scanSearch(scanner interface{ Scan(dest ...any) error }) (*Search, error) {
	var (
		id               int64
		address          string
		county           sql.NullString
		parcel           sql.NullString
		statusStr        string
		progressPercent  sql.NullFloat64
		statusMessage    sql.NullString
		retryCount       sql.NullInt64
		checkpoint       sql.NullString
		errorLog         sql.NullString
		chainEntries     sql.NullString
		encumbrances     sql.NullString
		result           sql.NullString
		partial          sql.NullInt64
		cancelRequested  sql.NullInt64
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&address,
		&county,
		&parcel,
		&statusStr,
		&progressPercent,
		&statusMessage,
		&retryCount,
		&checkpoint,
		&errorLog,
		&chainEntries,
		&encumbrances,
		&result,
		&partial,
		&cancelRequested,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	search := &Search{
		ID:               id,
		PropertyAddress:  address,
		County:           county.String,
		ParcelNumber:     parcel.String,
		Status:           Status(statusStr),
		ProgressPercent:  progressPercent.Float64,
		StatusMessage:    statusMessage.String,
		RetryCount:       int(retryCount.Int64),
		Checkpoint:       Status(checkpoint.String),
		ErrorLogJSON:     errorLog.String,
		ChainEntriesJSON: chainEntries.String,
		EncumbrancesJSON: encumbrances.String,
		ResultJSON:       result.String,
	}
	if partial.Valid {
		search.Partial = partial.Int64 != 0
	}
	if cancelRequested.Valid {
		search.CancelRequested = cancelRequested.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		search.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		search.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			search.LastHeartbeat = &heartbeat
		}
	}
	return search, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
