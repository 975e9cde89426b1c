package db

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"planted-staging/internal/model"
	"planted-staging/pkg/errors"

	"github.com/google/uuid"
)

const maxUpdateAttempts = 5

// Mutator changes an upload in place and reports whether anything changed.
// Returning an error aborts the update without persisting.
type Mutator func(u *model.StagedUpload) (bool, error)

// Guard vetoes a delete by returning an error.
type Guard func(u *model.StagedUpload) error

// Repository stores StagedUpload aggregates. Every write recomputes the
// derived summaries and status before it is persisted.
type Repository interface {
	Create(ctx context.Context, upload *model.StagedUpload) (*model.StagedUpload, error)
	Get(ctx context.Context, id string) (*model.StagedUpload, error)
	List(ctx context.Context, filter model.ListFilter) ([]*model.StagedUpload, int, error)
	Update(ctx context.Context, id string, mutate Mutator) (*model.StagedUpload, error)
	Delete(ctx context.Context, id string, guard Guard) (*model.StagedUpload, error)
	InsertEvent(ctx context.Context, event model.StagingEvent) error
	ListEvents(ctx context.Context, uploadID string) ([]model.StagingEvent, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// prepareCreate validates and fills a new aggregate. Shared by every store.
func prepareCreate(upload *model.StagedUpload) (*model.StagedUpload, error) {
	if upload == nil || upload.FileName == "" {
		return nil, errors.InvalidInput("staged upload needs a file name")
	}
	if len(upload.Sheets) == 0 {
		return nil, errors.InvalidInput("staged upload needs at least one sheet")
	}

	u := upload.Clone()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.UploadedAt.IsZero() {
		u.UploadedAt = time.Now().UTC()
	}
	if u.ParseErrors == nil {
		u.ParseErrors = []string{}
	}
	if u.Relationships == nil {
		u.Relationships = []model.DayRelationship{}
	}
	u.Recompute()
	return u, nil
}

func (r *repository) Create(ctx context.Context, upload *model.StagedUpload) (*model.StagedUpload, error) {
	u, err := prepareCreate(upload)
	if err != nil {
		return nil, err
	}

	doc, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode staged upload: %w", err)
	}

	query := `INSERT INTO staged_uploads (id, file_name, status, uploaded_at, version, document)
			  VALUES (?, ?, ?, ?, 0, ?)`
	if _, err := r.db.ExecContext(ctx, query, u.ID, u.FileName, u.Status, u.UploadedAt.UnixMilli(), string(doc)); err != nil {
		return nil, fmt.Errorf("insert staged upload: %w", err)
	}
	return u, nil
}

func (r *repository) Get(ctx context.Context, id string) (*model.StagedUpload, error) {
	u, _, err := r.load(ctx, id)
	return u, err
}

func (r *repository) load(ctx context.Context, id string) (*model.StagedUpload, int64, error) {
	query := `SELECT document, version FROM staged_uploads WHERE id = ?`

	var (
		doc     string
		version int64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&doc, &version)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, 0, errors.NotFound("staged upload", id)
	}
	if err != nil {
		return nil, 0, err
	}

	u, err := decodeUpload(doc)
	if err != nil {
		return nil, 0, err
	}
	return u, version, nil
}

func decodeUpload(doc string) (*model.StagedUpload, error) {
	var u model.StagedUpload
	if err := json.Unmarshal([]byte(doc), &u); err != nil {
		return nil, fmt.Errorf("decode staged upload: %w", err)
	}
	u.EnsureSheets()
	return &u, nil
}

func normalizeFilter(filter model.ListFilter) model.ListFilter {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	return filter
}

func (r *repository) List(ctx context.Context, filter model.ListFilter) ([]*model.StagedUpload, int, error) {
	filter = normalizeFilter(filter)
	where := ""
	var args []interface{}
	if filter.Status != "" {
		where = " WHERE status = ?"
		args = append(args, filter.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM staged_uploads`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT document FROM staged_uploads` + where + ` ORDER BY uploaded_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	uploads := []*model.StagedUpload{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, err
		}
		u, err := decodeUpload(doc)
		if err != nil {
			return nil, 0, err
		}
		uploads = append(uploads, u)
	}
	return uploads, total, rows.Err()
}

// Update is read, mutate, compare-and-swap on the version column, retried a
// few times when another writer got there first.
func (r *repository) Update(ctx context.Context, id string, mutate Mutator) (*model.StagedUpload, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		u, version, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}

		changed, err := mutate(u)
		if err != nil {
			return nil, err
		}
		if !changed {
			return u, nil
		}
		u.Recompute()

		doc, err := json.Marshal(u)
		if err != nil {
			return nil, fmt.Errorf("encode staged upload: %w", err)
		}

		query := `UPDATE staged_uploads SET document = ?, status = ?, version = version + 1
				  WHERE id = ? AND version = ?`
		res, err := r.db.ExecContext(ctx, query, string(doc), u.Status, id, version)
		if err != nil {
			return nil, fmt.Errorf("update staged upload: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			return u, nil
		}
	}
	return nil, errors.Conflict("staged upload %s was modified concurrently, try again", id)
}

func (r *repository) Delete(ctx context.Context, id string, guard Guard) (*model.StagedUpload, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		u, version, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if guard != nil {
			if err := guard(u); err != nil {
				return nil, err
			}
		}

		res, err := r.db.ExecContext(ctx, `DELETE FROM staged_uploads WHERE id = ? AND version = ?`, id, version)
		if err != nil {
			return nil, fmt.Errorf("delete staged upload: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			return u, nil
		}
	}
	return nil, errors.Conflict("staged upload %s was modified concurrently, try again", id)
}

func (r *repository) InsertEvent(ctx context.Context, event model.StagingEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO staging_events (id, upload_id, type, actor, payload, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, event.ID, event.UploadID, event.Type, event.Actor,
		string(event.Payload), event.CreatedAt.UnixMilli())
	return err
}

func (r *repository) ListEvents(ctx context.Context, uploadID string) ([]model.StagingEvent, error) {
	query := `SELECT id, upload_id, type, actor, payload, created_at FROM staging_events
			  WHERE upload_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.StagingEvent{}
	for rows.Next() {
		var (
			event     model.StagingEvent
			payload   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&event.ID, &event.UploadID, &event.Type, &event.Actor, &payload, &createdAt); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		event.CreatedAt = time.UnixMilli(createdAt).UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}
