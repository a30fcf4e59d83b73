package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/evanschultz/quadro/internal/app"
	"github.com/evanschultz/quadro/internal/domain"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// taskColumns is the select list scanTask expects.
const taskColumns = `
	id, title, description, status, priority, due_date, origin_module,
	empresa_id, processo_id, denuncia_id, divida_id, responsavel_user_id,
	order_index, anexos_json, version, created_at, updated_at`

// Repository persists tasks and the change ledger in one sqlite database.
type Repository struct {
	db *sql.DB
}

// Open opens the database at path, creating parent directories and schema.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file:quadro-"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	// one writer keeps sqlite from returning SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			due_date TEXT,
			origin_module TEXT NOT NULL,
			empresa_id TEXT NOT NULL DEFAULT '',
			processo_id TEXT NOT NULL DEFAULT '',
			denuncia_id TEXT NOT NULL DEFAULT '',
			divida_id TEXT NOT NULL DEFAULT '',
			responsavel_user_id TEXT NOT NULL DEFAULT '',
			order_index INTEGER NOT NULL,
			anexos_json TEXT NOT NULL DEFAULT '[]',
			version INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_order ON tasks(status, order_index);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_empresa ON tasks(empresa_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_responsavel ON tasks(responsavel_user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_created_at ON change_events(created_at DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// LoadTasks returns tasks matching filter, most recently created first.
func (r *Repository) LoadTasks(ctx context.Context, filter app.TaskFilter) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var (
		where []string
		args  []any
	)
	if filter.EmpresaID != "" {
		where = append(where, "empresa_id = ?")
		args = append(args, filter.EmpresaID)
	}
	if filter.OriginModule != "" {
		where = append(where, "origin_module = ?")
		args = append(args, string(filter.OriginModule))
	}
	if filter.ResponsavelUserID != "" {
		where = append(where, "responsavel_user_id = ?")
		args = append(args, filter.ResponsavelUserID)
	}
	if filter.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(filter.Priority))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTask returns one task by id.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTaskByID(ctx, r.db, id)
}

// CreateTask inserts a task and records a create event.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertTask(ctx, tx, t); err != nil {
		return err
	}
	err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		TaskID:    t.ID,
		Operation: domain.ChangeOperationCreate,
		Metadata: map[string]string{
			"title":       t.Title,
			"status":      string(t.Status),
			"order_index": strconv.Itoa(t.OrderIndex),
		},
		OccurredAt: t.CreatedAt,
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateTask overwrites a task's mutable fields and records which ones changed.
func (r *Repository) UpdateTask(ctx context.Context, t domain.Task) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	prev, err := getTaskByID(ctx, tx, t.ID)
	if err != nil {
		return err
	}
	anexosJSON, err := json.Marshal(nonNilStrings(t.Anexos))
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, priority = ?, due_date = ?,
			empresa_id = ?, processo_id = ?, denuncia_id = ?, divida_id = ?, responsavel_user_id = ?,
			anexos_json = ?, version = ?, updated_at = ?
		WHERE id = ?
	`,
		t.Title,
		t.Description,
		string(t.Priority),
		nullableTS(t.DueDate),
		t.EmpresaID,
		t.ProcessoID,
		t.DenunciaID,
		t.DividaID,
		t.ResponsavelUserID,
		string(anexosJSON),
		t.Version,
		ts(t.UpdatedAt),
		t.ID,
	)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	metadata := map[string]string{}
	if fields := changedTaskFields(prev, t); len(fields) > 0 {
		metadata["changed_fields"] = strings.Join(fields, ",")
	}
	err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		TaskID:     t.ID,
		Operation:  domain.ChangeOperationUpdate,
		Metadata:   metadata,
		OccurredAt: t.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// MoveTasks writes the placement of every renumbered task in one transaction
// and records a move event for taskID.
func (r *Repository) MoveTasks(ctx context.Context, taskID string, changed []domain.Task) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	prev, err := getTaskByID(ctx, tx, taskID)
	if err != nil {
		return err
	}
	next := prev
	for _, t := range changed {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, order_index = ?, version = ?, updated_at = ? WHERE id = ?
		`, string(t.Status), t.OrderIndex, t.Version, ts(t.UpdatedAt), t.ID)
		if err != nil {
			return err
		}
		if err := translateNoRows(res); err != nil {
			return err
		}
		if t.ID == taskID {
			next = t
		}
	}
	err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		TaskID:    taskID,
		Operation: domain.ChangeOperationMove,
		Metadata: map[string]string{
			"from_status":      string(prev.Status),
			"to_status":        string(next.Status),
			"from_order_index": strconv.Itoa(prev.OrderIndex),
			"to_order_index":   strconv.Itoa(next.OrderIndex),
			"renumbered":       strconv.Itoa(len(changed)),
		},
		OccurredAt: next.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceTasks swaps the whole task table for tasks and records one import event.
func (r *Repository) ReplaceTasks(ctx context.Context, tasks []domain.Task) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return err
	}
	for _, t := range tasks {
		if err = insertTask(ctx, tx, t); err != nil {
			return err
		}
	}
	err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		Operation: domain.ChangeOperationImport,
		Metadata:  map[string]string{"count": strconv.Itoa(len(tasks))},
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ListChangeEvents returns the newest ledger entries first.
func (r *Repository) ListChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, operation, metadata_json, created_at
		FROM change_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			opRaw       string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &event.TaskID, &opRaw, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Operation = domain.ChangeOperation(strings.TrimSpace(opRaw))
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// queryRower represents a query-only DB contract used by DB and Tx implementations.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(...any) error
}

func getTaskByID(ctx context.Context, q queryRower, id string) (domain.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func insertTask(ctx context.Context, execer execerContext, t domain.Task) error {
	anexosJSON, err := json.Marshal(nonNilStrings(t.Anexos))
	if err != nil {
		return err
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO tasks(
			id, title, description, status, priority, due_date, origin_module,
			empresa_id, processo_id, denuncia_id, divida_id, responsavel_user_id,
			order_index, anexos_json, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		nullableTS(t.DueDate),
		string(t.OriginModule),
		t.EmpresaID,
		t.ProcessoID,
		t.DenunciaID,
		t.DividaID,
		t.ResponsavelUserID,
		t.OrderIndex,
		string(anexosJSON),
		t.Version,
		ts(t.CreatedAt),
		ts(t.UpdatedAt),
	)
	return err
}

// insertChangeEvent inserts a change-event ledger record.
func insertChangeEvent(ctx context.Context, execer execerContext, event domain.ChangeEvent) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode change event metadata: %w", err)
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO change_events(task_id, operation, metadata_json, created_at)
		VALUES (?, ?, ?, ?)
	`,
		event.TaskID,
		string(event.Operation),
		string(metadataJSON),
		ts(occurred),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

// changedTaskFields lists the mutable fields that differ, in a fixed order.
func changedTaskFields(prev, next domain.Task) []string {
	changed := make([]string, 0)
	if prev.Title != next.Title {
		changed = append(changed, "title")
	}
	if prev.Description != next.Description {
		changed = append(changed, "description")
	}
	if prev.Priority != next.Priority {
		changed = append(changed, "priority")
	}
	if !equalNullableTimes(prev.DueDate, next.DueDate) {
		changed = append(changed, "due_date")
	}
	if prev.EmpresaID != next.EmpresaID {
		changed = append(changed, "empresa_id")
	}
	if prev.ProcessoID != next.ProcessoID {
		changed = append(changed, "processo_id")
	}
	if prev.DenunciaID != next.DenunciaID {
		changed = append(changed, "denuncia_id")
	}
	if prev.DividaID != next.DividaID {
		changed = append(changed, "divida_id")
	}
	if prev.ResponsavelUserID != next.ResponsavelUserID {
		changed = append(changed, "responsavel_user_id")
	}
	if strings.Join(prev.Anexos, "\x00") != strings.Join(next.Anexos, "\x00") {
		changed = append(changed, "anexos")
	}
	return changed
}

func equalNullableTimes(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		t          domain.Task
		dueRaw     sql.NullString
		anexosRaw  string
		createdRaw string
		updatedRaw string
		status     string
		priority   string
		origin     string
	)
	if err := s.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&status,
		&priority,
		&dueRaw,
		&origin,
		&t.EmpresaID,
		&t.ProcessoID,
		&t.DenunciaID,
		&t.DividaID,
		&t.ResponsavelUserID,
		&t.OrderIndex,
		&anexosRaw,
		&t.Version,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Status = domain.Status(status)
	t.Priority = domain.Priority(priority)
	t.OriginModule = domain.OriginModule(origin)
	t.DueDate = parseNullTS(dueRaw)
	if strings.TrimSpace(anexosRaw) != "" {
		if err := json.Unmarshal([]byte(anexosRaw), &t.Anexos); err != nil {
			return domain.Task{}, fmt.Errorf("decode tasks.anexos_json: %w", err)
		}
	}
	if len(t.Anexos) == 0 {
		t.Anexos = nil
	}
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
