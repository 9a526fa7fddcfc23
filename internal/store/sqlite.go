// Package store persists forms, batches, test runs, and results in SQLite
// and keeps document images in a filesystem blob store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clerkops/formbench/internal/types"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS forms (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	form_type      TEXT NOT NULL DEFAULT 'empty',
	storage_path   TEXT NOT NULL,
	field_mappings TEXT NOT NULL,
	uploaded_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS batches (
	id           TEXT PRIMARY KEY,
	batch_number TEXT NOT NULL,
	batch_type   TEXT NOT NULL,
	form_id      TEXT NOT NULL,
	form_name    TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	count        INTEGER NOT NULL,
	skew_preset  TEXT NOT NULL DEFAULT '',
	documents    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS test_runs (
	id                  TEXT PRIMARY KEY,
	batch_ids           TEXT NOT NULL,
	layout_library      TEXT NOT NULL,
	ocr_library         TEXT NOT NULL,
	status              TEXT NOT NULL,
	started_at          TIMESTAMP NOT NULL,
	completed_at        TIMESTAMP,
	error_message       TEXT NOT NULL DEFAULT '',
	total_documents     INTEGER NOT NULL,
	processed_documents INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS results (
	id                TEXT PRIMARY KEY,
	test_run_id       TEXT NOT NULL,
	document_id       TEXT NOT NULL,
	batch_id          TEXT NOT NULL,
	layout_results    TEXT NOT NULL,
	ocr_results       TEXT NOT NULL,
	extracted_fields  TEXT NOT NULL,
	overall_accuracy  REAL NOT NULL,
	created_at        TIMESTAMP NOT NULL,
	verified_accuracy REAL,
	verified_at       TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_results_test_run ON results(test_run_id);
`

// Store is the SQLite-backed metadata store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The sqlite driver serializes writes; a single connection avoids
	// SQLITE_BUSY between the runner and the API.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, logger: logger.With("component", "store")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateForm inserts a form record, assigning ID, Kind, and UploadedAt if unset.
func (s *Store) CreateForm(ctx context.Context, form *types.Form) error {
	if form.ID == "" {
		form.ID = newID()
	}
	if form.Kind == "" {
		form.Kind = types.FormEmpty
	}
	if form.UploadedAt.IsZero() {
		form.UploadedAt = time.Now().UTC()
	}
	mappings, err := json.Marshal(form.FieldMappings)
	if err != nil {
		return fmt.Errorf("marshal field mappings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO forms (id, name, form_type, storage_path, field_mappings, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		form.ID, form.Name, string(form.Kind), form.StoragePath, string(mappings), form.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert form: %w", err)
	}
	return nil
}

// GetForm returns a form by ID.
func (s *Store) GetForm(ctx context.Context, id string) (*types.Form, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, form_type, storage_path, field_mappings, uploaded_at FROM forms WHERE id = ?`, id)
	return scanForm(row)
}

// ListForms returns all forms, newest first.
func (s *Store) ListForms(ctx context.Context) ([]types.Form, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, form_type, storage_path, field_mappings, uploaded_at FROM forms ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	var forms []types.Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, *f)
	}
	return forms, rows.Err()
}

// UpdateFormMappings replaces a form's field mappings.
func (s *Store) UpdateFormMappings(ctx context.Context, id string, mappings []types.FieldMapping) error {
	data, err := json.Marshal(mappings)
	if err != nil {
		return fmt.Errorf("marshal field mappings: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE forms SET field_mappings = ? WHERE id = ?`, string(data), id)
	if err != nil {
		return fmt.Errorf("update form mappings: %w", err)
	}
	return requireRow(res)
}

// DeleteForm removes a form record.
func (s *Store) DeleteForm(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM forms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	return requireRow(res)
}

// CreateBatch inserts a batch, assigning ID, sequential batch number, and
// CreatedAt if unset.
func (s *Store) CreateBatch(ctx context.Context, batch *types.Batch) error {
	if batch.ID == "" {
		batch.ID = newID()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	if batch.Kind == "" {
		batch.Kind = types.BatchSynthetic
	}
	if batch.BatchNumber == "" {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches`).Scan(&n); err != nil {
			return fmt.Errorf("count batches: %w", err)
		}
		batch.BatchNumber = fmt.Sprintf("B%04d", n+1)
	}

	docs, err := json.Marshal(batch.Documents)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO batches (id, batch_number, batch_type, form_id, form_name, created_at, count, skew_preset, documents)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID, batch.BatchNumber, string(batch.Kind), batch.FormID, batch.FormName,
		batch.CreatedAt, batch.Count, batch.SkewPreset, string(docs))
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// GetBatch returns a batch by ID.
func (s *Store) GetBatch(ctx context.Context, id string) (*types.Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, batch_number, batch_type, form_id, form_name, created_at, count, skew_preset, documents
		 FROM batches WHERE id = ?`, id)
	return scanBatch(row)
}

// ListBatches returns all batches, newest first.
func (s *Store) ListBatches(ctx context.Context) ([]types.Batch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_number, batch_type, form_id, form_name, created_at, count, skew_preset, documents
		 FROM batches ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []types.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

// DeleteBatch removes a batch record.
func (s *Store) DeleteBatch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return requireRow(res)
}

// CreateRun inserts a test run, assigning ID, StartedAt, and pending
// status if unset.
func (s *Store) CreateRun(ctx context.Context, run *types.TestRun) error {
	if run.ID == "" {
		run.ID = newID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = types.RunPending
	}
	batchIDs, err := json.Marshal(run.BatchIDs)
	if err != nil {
		return fmt.Errorf("marshal batch ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO test_runs (id, batch_ids, layout_library, ocr_library, status, started_at, completed_at, error_message, total_documents, processed_documents)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(batchIDs), run.LayoutLibrary, run.OCRLibrary, string(run.Status),
		run.StartedAt, run.CompletedAt, run.ErrorMessage, run.TotalDocs, run.ProcessedDocs)
	if err != nil {
		return fmt.Errorf("insert test run: %w", err)
	}
	return nil
}

// GetRun returns a test run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*types.TestRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, batch_ids, layout_library, ocr_library, status, started_at, completed_at, error_message, total_documents, processed_documents
		 FROM test_runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns all test runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]types.TestRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_ids, layout_library, ocr_library, status, started_at, completed_at, error_message, total_documents, processed_documents
		 FROM test_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list test runs: %w", err)
	}
	defer rows.Close()

	var runs []types.TestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// UpdateRunStatus moves a run to status and records progress. Terminal
// statuses also stamp completed_at.
func (s *Store) UpdateRunStatus(ctx context.Context, id string, status types.RunStatus, processed int, errMsg string) error {
	var completedAt any
	if status == types.RunCompleted || status == types.RunFailed {
		completedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE test_runs
		 SET status = ?, processed_documents = ?, error_message = ?,
		     completed_at = COALESCE(?, completed_at)
		 WHERE id = ?`,
		string(status), processed, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return requireRow(res)
}

// CreateResult inserts a per-document pipeline result.
func (s *Store) CreateResult(ctx context.Context, r *types.PipelineRunResult) error {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	layoutJSON, err := json.Marshal(r.Layout)
	if err != nil {
		return fmt.Errorf("marshal layout results: %w", err)
	}
	ocrJSON, err := json.Marshal(r.OCR)
	if err != nil {
		return fmt.Errorf("marshal ocr results: %w", err)
	}
	fieldsJSON, err := json.Marshal(r.ExtractedFields)
	if err != nil {
		return fmt.Errorf("marshal extracted fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (id, test_run_id, document_id, batch_id, layout_results, ocr_results, extracted_fields, overall_accuracy, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TestRunID, r.DocumentID, r.BatchID,
		string(layoutJSON), string(ocrJSON), string(fieldsJSON), r.OverallAccuracy, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// GetResult returns a result by ID.
func (s *Store) GetResult(ctx context.Context, id string) (*types.PipelineRunResult, error) {
	row := s.db.QueryRowContext(ctx, selectResult+` WHERE id = ?`, id)
	return scanResult(row)
}

// GetResultByDocument returns the result for one document in a run.
func (s *Store) GetResultByDocument(ctx context.Context, runID, documentID string) (*types.PipelineRunResult, error) {
	row := s.db.QueryRowContext(ctx, selectResult+` WHERE test_run_id = ? AND document_id = ? LIMIT 1`, runID, documentID)
	return scanResult(row)
}

// ListResultsByRun returns all results for a test run in creation order.
func (s *Store) ListResultsByRun(ctx context.Context, runID string) ([]types.PipelineRunResult, error) {
	rows, err := s.db.QueryContext(ctx, selectResult+` WHERE test_run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []types.PipelineRunResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// UpdateResultVerification replaces a result's extracted fields with the
// reviewer-verified set and records the verified accuracy.
func (s *Store) UpdateResultVerification(ctx context.Context, id string, fields []types.ExtractedField, verifiedAccuracy float64) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal extracted fields: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE results SET extracted_fields = ?, verified_accuracy = ?, verified_at = ? WHERE id = ?`,
		string(fieldsJSON), verifiedAccuracy, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update result verification: %w", err)
	}
	return requireRow(res)
}

// UpdateResultVerificationFullText replaces a full-text result's OCR
// output with the reviewer-corrected text regions.
func (s *Store) UpdateResultVerificationFullText(ctx context.Context, id string, ocr types.OCROutput, verifiedAccuracy float64) error {
	ocrJSON, err := json.Marshal(ocr)
	if err != nil {
		return fmt.Errorf("marshal ocr results: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE results SET ocr_results = ?, verified_accuracy = ?, verified_at = ? WHERE id = ?`,
		string(ocrJSON), verifiedAccuracy, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update result verification: %w", err)
	}
	return requireRow(res)
}

const selectResult = `SELECT id, test_run_id, document_id, batch_id, layout_results, ocr_results, extracted_fields, overall_accuracy, created_at, verified_accuracy, verified_at FROM results`

type scanner interface {
	Scan(dest ...any) error
}

func scanForm(row scanner) (*types.Form, error) {
	var f types.Form
	var kind, mappings string
	err := row.Scan(&f.ID, &f.Name, &kind, &f.StoragePath, &mappings, &f.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan form: %w", err)
	}
	f.Kind = types.FormKind(kind)
	if err := json.Unmarshal([]byte(mappings), &f.FieldMappings); err != nil {
		return nil, fmt.Errorf("unmarshal field mappings: %w", err)
	}
	return &f, nil
}

func scanBatch(row scanner) (*types.Batch, error) {
	var b types.Batch
	var kind, docs string
	err := row.Scan(&b.ID, &b.BatchNumber, &kind, &b.FormID, &b.FormName, &b.CreatedAt, &b.Count, &b.SkewPreset, &docs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	b.Kind = types.BatchKind(kind)
	if err := json.Unmarshal([]byte(docs), &b.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	return &b, nil
}

func scanRun(row scanner) (*types.TestRun, error) {
	var r types.TestRun
	var batchIDs, status string
	var completedAt sql.NullTime
	err := row.Scan(&r.ID, &batchIDs, &r.LayoutLibrary, &r.OCRLibrary, &status,
		&r.StartedAt, &completedAt, &r.ErrorMessage, &r.TotalDocs, &r.ProcessedDocs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan test run: %w", err)
	}
	r.Status = types.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(batchIDs), &r.BatchIDs); err != nil {
		return nil, fmt.Errorf("unmarshal batch ids: %w", err)
	}
	return &r, nil
}

func scanResult(row scanner) (*types.PipelineRunResult, error) {
	var r types.PipelineRunResult
	var layoutJSON, ocrJSON, fieldsJSON string
	var verifiedAccuracy sql.NullFloat64
	var verifiedAt sql.NullTime
	err := row.Scan(&r.ID, &r.TestRunID, &r.DocumentID, &r.BatchID,
		&layoutJSON, &ocrJSON, &fieldsJSON, &r.OverallAccuracy, &r.CreatedAt,
		&verifiedAccuracy, &verifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan result: %w", err)
	}
	if err := json.Unmarshal([]byte(layoutJSON), &r.Layout); err != nil {
		return nil, fmt.Errorf("unmarshal layout results: %w", err)
	}
	if err := json.Unmarshal([]byte(ocrJSON), &r.OCR); err != nil {
		return nil, fmt.Errorf("unmarshal ocr results: %w", err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &r.ExtractedFields); err != nil {
		return nil, fmt.Errorf("unmarshal extracted fields: %w", err)
	}
	if verifiedAccuracy.Valid {
		v := verifiedAccuracy.Float64
		r.VerifiedAccuracy = &v
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		r.VerifiedAt = &t
	}
	return &r, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
