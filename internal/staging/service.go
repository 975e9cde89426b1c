package staging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"planted-staging/internal/config"
	"planted-staging/internal/db"
	"planted-staging/internal/excel"
	"planted-staging/internal/linker"
	"planted-staging/internal/logger"
	"planted-staging/internal/model"
	"planted-staging/internal/queue"
	"planted-staging/internal/storage"
	"planted-staging/pkg/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service stages uploaded workbooks and serves the read side of staged uploads.
type Service struct {
	cfg           config.StagingConfig
	repo          db.Repository
	strategy      excel.ParsingStrategy
	linker        *linker.Linker
	archive       storage.Storage
	archivePrefix string
	publisher     queue.Publisher
	log           zerolog.Logger
}

// NewService wires the staging service. archive may be nil, in which case
// original workbooks are not kept.
func NewService(
	cfg config.StagingConfig,
	repo db.Repository,
	strategy excel.ParsingStrategy,
	linker *linker.Linker,
	archive storage.Storage,
	archivePrefix string,
	publisher queue.Publisher,
) *Service {
	return &Service{
		cfg:           cfg,
		repo:          repo,
		strategy:      strategy,
		linker:        linker,
		archive:       archive,
		archivePrefix: archivePrefix,
		publisher:     publisher,
		log:           logger.Component("staging"),
	}
}

// Upload parses a workbook and stages every recognized row as pending. It
// fails only when the file is not a readable workbook.
func (s *Service) Upload(ctx context.Context, actor model.AdminIdentity, fileName string, data []byte) (*model.UploadResponse, error) {
	fileName = path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if fileName == "." || fileName == "/" {
		fileName = ""
	}
	if fileName == "" {
		return nil, errors.InvalidInput("file name is required")
	}
	if len(data) == 0 {
		return nil, errors.InvalidInput("file is empty")
	}
	if s.cfg.MaxFileSize > 0 && int64(len(data)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", errors.ErrFileTooLarge, len(data), s.cfg.MaxFileSize)
	}

	mt := mimetype.Detect(data)
	if !isWorkbook(mt) {
		return nil, errors.NewFatalParseError(fmt.Sprintf("detected %s, expected an .xlsx workbook", mt.String()), nil)
	}

	log := s.log.With().Str("file_name", fileName).Int("size", len(data)).Logger()
	log.Info().Msg("Parsing uploaded workbook")

	result, err := s.strategy.Parse(ctx, data)
	if err != nil {
		log.Warn().Err(err).Msg("Workbook rejected")
		return nil, err
	}

	upload := &model.StagedUpload{
		ID:          uuid.NewString(),
		FileName:    fileName,
		FileSize:    int64(len(data)),
		UploadedAt:  time.Now().UTC(),
		UploadedBy:  actor,
		ParseErrors: result.ParseErrors,
		Sheets:      make(map[model.SheetKey]*model.StagedSheet, len(model.SheetOrder)),
	}
	if upload.ParseErrors == nil {
		upload.ParseErrors = []string{}
	}
	for key, items := range result.Sheets {
		upload.Sheets[key] = &model.StagedSheet{SheetSummary: model.SheetSummary{SheetName: string(key)}, Items: items}
	}
	upload.EnsureSheets()
	upload.Relationships = s.linker.Link(result.Sheets)

	if s.archive != nil {
		key := storage.ArchiveKey(s.archivePrefix, upload.ID, fileName)
		if err := s.archive.Upload(ctx, key, data, mt.String()); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to archive workbook, continuing without it")
		} else {
			upload.ArchiveKey = key
		}
	}

	created, err := s.repo.Create(ctx, upload)
	if err != nil {
		if upload.ArchiveKey != "" {
			s.removeArchive(ctx, upload.ArchiveKey)
		}
		return nil, err
	}

	log.Info().
		Str("upload_id", created.ID).
		Int("items", created.Summary.TotalItems).
		Int("days", len(created.Relationships)).
		Int("parse_errors", len(created.ParseErrors)).
		Msg("Workbook staged")

	s.publish(ctx, created.ID, model.EventUploadCreated, actor, map[string]interface{}{
		"fileName":   created.FileName,
		"fileSize":   created.FileSize,
		"totalItems": created.Summary.TotalItems,
	})

	resp := &model.UploadResponse{
		UploadID:    created.ID,
		FileName:    created.FileName,
		Summary:     created.Summary,
		ParseErrors: created.ParseErrors,
		Sheets:      make(map[model.SheetKey]model.SheetCounters, len(created.Sheets)),
		TotalDays:   len(created.Relationships),
	}
	for key, sheet := range created.Sheets {
		resp.Sheets[key] = model.SheetCounters{TotalItems: sheet.TotalItems, PendingCount: sheet.PendingCount}
	}
	return resp, nil
}

func isWorkbook(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(xlsxMIME) || m.Is("application/zip") {
			return true
		}
	}
	return false
}

// pageParams applies the default and maximum page sizes.
func (s *Service) pageParams(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.cfg.DefaultPageSize
	}
	if s.cfg.MaxPageSize > 0 && limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	if limit < 1 {
		limit = 20
	}
	return page, limit
}

func (s *Service) List(ctx context.Context, filter model.ListFilter) (*model.UploadPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errors.InvalidInput("unknown status %q", filter.Status)
	}
	filter.Page, filter.Limit = s.pageParams(filter.Page, filter.Limit)

	uploads, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &model.UploadPage{
		Uploads:    make([]model.UploadOverview, 0, len(uploads)),
		Pagination: model.NewPagination(total, filter.Page, filter.Limit),
	}
	for _, u := range uploads {
		page.Uploads = append(page.Uploads, u.Overview())
	}
	return page, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.StagedUpload, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Summary(ctx context.Context, id string) (*model.UploadSummaryResponse, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := u.SummaryView()
	return &view, nil
}

// Sheet returns one page of a sheet's items in index order.
func (s *Service) Sheet(ctx context.Context, id, sheetName string, page, limit int) (*model.SheetPage, error) {
	key, ok := model.ParseSheetKey(sheetName)
	if !ok {
		return nil, errors.NotFound("sheet", sheetName)
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sheet := u.Sheet(key)
	if sheet == nil {
		return nil, errors.NotFound("sheet", sheetName)
	}

	page, limit = s.pageParams(page, limit)
	p := model.NewPagination(len(sheet.Items), page, limit)
	start, end := p.Bounds()
	return &model.SheetPage{
		Summary:    sheet.SheetSummary,
		Items:      append([]model.StagedItem{}, sheet.Items[start:end]...),
		Pagination: p,
	}, nil
}

// Relationships returns one page of day relationships in dayId order.
func (s *Service) Relationships(ctx context.Context, id string, page, limit int) (*model.RelationshipPage, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	page, limit = s.pageParams(page, limit)
	p := model.NewPagination(len(u.Relationships), page, limit)
	start, end := p.Bounds()
	return &model.RelationshipPage{
		Relationships: append([]model.DayRelationship{}, u.Relationships[start:end]...),
		Pagination:    p,
	}, nil
}

// Events lists the audit trail of an upload, oldest first. The trail
// outlives the upload itself.
func (s *Service) Events(ctx context.Context, id string) ([]model.StagingEvent, error) {
	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.StagingEvent{}
	}
	return events, nil
}

// Original streams the archived workbook of an upload.
func (s *Service) Original(ctx context.Context, id string) (string, io.ReadCloser, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if s.archive == nil || u.ArchiveKey == "" {
		return "", nil, errors.NotFound("archived workbook", id)
	}
	rc, err := s.archive.Download(ctx, u.ArchiveKey)
	if err != nil {
		return "", nil, err
	}
	return u.FileName, rc, nil
}

// Delete removes an upload that is not fully approved, together with its
// archived workbook.
func (s *Service) Delete(ctx context.Context, actor model.AdminIdentity, id string) error {
	deleted, err := s.repo.Delete(ctx, id, func(u *model.StagedUpload) error {
		if u.Status == model.UploadFullyApproved {
			return errors.Conflict("staged upload %s is fully approved and cannot be deleted", u.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if deleted.ArchiveKey != "" {
		s.removeArchive(ctx, deleted.ArchiveKey)
	}

	s.log.Info().Str("upload_id", id).Str("status", string(deleted.Status)).Msg("Staged upload deleted")
	s.publish(ctx, id, model.EventUploadDeleted, actor, map[string]interface{}{
		"fileName": deleted.FileName,
		"status":   deleted.Status,
		"summary":  deleted.Summary,
	})
	return nil
}

func (s *Service) removeArchive(ctx context.Context, key string) {
	if s.archive == nil {
		return
	}
	exists, err := s.archive.Exists(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to check archived workbook")
		return
	}
	if !exists {
		return
	}
	if err := s.archive.Delete(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to delete archived workbook")
	}
}

func (s *Service) publish(ctx context.Context, uploadID string, eventType model.EventType, actor model.AdminIdentity, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("type", string(eventType)).Msg("Failed to encode event payload")
		return
	}
	event := model.StagingEvent{UploadID: uploadID, Type: eventType, Actor: actor.ID, Payload: raw}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("upload_id", uploadID).Str("type", string(eventType)).Msg("Failed to publish staging event")
	}
}
