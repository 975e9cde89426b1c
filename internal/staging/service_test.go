package staging

import (
	"context"
	"fmt"
	"io"
	"testing"

	"planted-staging/internal/config"
	"planted-staging/internal/db"
	"planted-staging/internal/excel"
	"planted-staging/internal/linker"
	"planted-staging/internal/model"
	"planted-staging/internal/storage"
	"planted-staging/internal/worker"
	"planted-staging/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var admin = model.AdminIdentity{ID: "admin-1", FirstName: "Ada"}

func workbook(t *testing.T, sheets map[string][][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	for name, rows := range sheets {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
		for i, r := range rows {
			row := r
			require.NoError(t, f.SetSheetRow(name, fmt.Sprintf("A%d", i+1), &row))
		}
	}
	require.NoError(t, f.DeleteSheet("Sheet1"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// weekWorkbook has three valid memory verses and a devotional without a body.
func weekWorkbook(t *testing.T) []byte {
	return workbook(t, map[string][][]interface{}{
		"Memory Verses": {
			{"DayID", "Date", "Reference", "Verse Text_5_8"},
			{"20260118", "2026-01-18", "John 3:16", "God loves us"},
			{"20260119", "2026-01-19", "John 4:14", "Living water"},
			{"20260120", "2026-01-20", "John 5:24", "Whoever hears"},
		},
		"Children Devotionals": {
			{"DayID", "Date", "Title", "Bible Reference", "Verse Text", "Body/Story"},
			{"20260118", "2026-01-18", "God's Promise", "John 3:16", "For God so loved", ""},
		},
	})
}

type harness struct {
	svc     *Service
	repo    db.Repository
	archive *storage.MemoryStorage
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := db.NewMemoryRepository()
	archive := storage.NewMemoryStorage()
	svc := NewService(
		config.StagingConfig{MaxFileSize: 1 << 20, DefaultPageSize: 20, MaxPageSize: 100},
		repo,
		excel.NewExcelStrategy(),
		linker.New(config.DuplicateDayLastWins),
		archive,
		"staged-uploads",
		worker.NewEventRecorder(repo),
	)
	return &harness{svc: svc, repo: repo, archive: archive}
}

func TestUploadStagesWorkbook(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.Upload(ctx, admin, `C:\fakepath\week-3.xlsx`, weekWorkbook(t))
	require.NoError(t, err)
	assert.Equal(t, "week-3.xlsx", resp.FileName)
	assert.Equal(t, 4, resp.Summary.TotalItems)
	assert.Equal(t, 4, resp.Summary.PendingApproval)
	assert.Equal(t, 3, resp.TotalDays)
	assert.Equal(t, model.SheetCounters{TotalItems: 3, PendingCount: 3}, resp.Sheets[model.SheetMemoryVerses])
	assert.Equal(t, model.SheetCounters{}, resp.Sheets[model.SheetQuizzes9to12])

	u, err := h.svc.Get(ctx, resp.UploadID)
	require.NoError(t, err)
	assert.Equal(t, model.UploadPending, u.Status)
	assert.Equal(t, admin, u.UploadedBy)
	assert.Len(t, u.Sheet(model.SheetChildrenDevotionals).Item(0).ValidationErrors, 1)
	for _, it := range u.Sheet(model.SheetMemoryVerses).Items {
		assert.Empty(t, it.ValidationErrors)
	}

	assert.Equal(t, "staged-uploads/"+resp.UploadID+"/week-3.xlsx", u.ArchiveKey)
	name, rc, err := h.svc.Original(ctx, resp.UploadID)
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "week-3.xlsx", name)
	assert.Equal(t, weekWorkbook(t)[:2], body[:2])

	events, err := h.svc.Events(ctx, resp.UploadID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventUploadCreated, events[0].Type)
	assert.Equal(t, "admin-1", events[0].Actor)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Upload(ctx, admin, "notes.xlsx", []byte("just some text, not a workbook"))
	assert.ErrorIs(t, err, errors.ErrInvalidFileFormat)

	_, err = h.svc.Upload(ctx, admin, "empty.xlsx", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	h.svc.cfg.MaxFileSize = 10
	_, err = h.svc.Upload(ctx, admin, "big.xlsx", weekWorkbook(t))
	assert.ErrorIs(t, err, errors.ErrFileTooLarge)
	h.svc.cfg.MaxFileSize = 1 << 20

	_, err = h.svc.Upload(ctx, admin, "stories.xlsx", workbook(t, map[string][][]interface{}{
		"Stories": {{"Title"}, {"Once"}},
	}))
	assert.ErrorIs(t, err, errors.ErrNoRecognizedSheets)

	page, err := h.svc.List(ctx, model.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Pagination.Total)
}

func TestSheetPagesStitchBackTogether(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.Upload(ctx, admin, "week.xlsx", weekWorkbook(t))
	require.NoError(t, err)

	var stitched []int
	for page := 1; page <= 2; page++ {
		p, err := h.svc.Sheet(ctx, resp.UploadID, "memoryVerses", page, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Summary.TotalItems)
		assert.Equal(t, 2, p.Pagination.TotalPages)
		for _, it := range p.Items {
			stitched = append(stitched, it.Index)
		}
	}
	assert.Equal(t, []int{0, 1, 2}, stitched)

	p, err := h.svc.Sheet(ctx, resp.UploadID, "memoryVerses", 9, 0)
	require.NoError(t, err)
	assert.Empty(t, p.Items)
	assert.Equal(t, 20, p.Pagination.Limit)

	_, err = h.svc.Sheet(ctx, resp.UploadID, "stories", 1, 10)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	rels, err := h.svc.Relationships(ctx, resp.UploadID, 1, 500)
	require.NoError(t, err)
	assert.Equal(t, 100, rels.Pagination.Limit)
	require.Len(t, rels.Relationships, 3)
	assert.Equal(t, "20260118", rels.Relationships[0].DayID)
	assert.Contains(t, rels.Relationships[0].Links, model.SlotChildrenDevotional)
}

func TestListFiltersByStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.Upload(ctx, admin, "a.xlsx", weekWorkbook(t))
	require.NoError(t, err)
	_, err = h.svc.Upload(ctx, admin, "b.xlsx", weekWorkbook(t))
	require.NoError(t, err)

	_, err = h.repo.Update(ctx, first.UploadID, func(u *model.StagedUpload) (bool, error) {
		for _, sh := range u.Sheets {
			for i := range sh.Items {
				sh.Items[i].Status = model.ItemRejected
			}
		}
		return true, nil
	})
	require.NoError(t, err)

	page, err := h.svc.List(ctx, model.ListFilter{Status: model.UploadRejected})
	require.NoError(t, err)
	require.Len(t, page.Uploads, 1)
	assert.Equal(t, first.UploadID, page.Uploads[0].ID)

	page, err = h.svc.List(ctx, model.ListFilter{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.Len(t, page.Uploads, 1)

	_, err = h.svc.List(ctx, model.ListFilter{Status: "DONE"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestDeleteGuardsFullyApproved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.Upload(ctx, admin, "week.xlsx", weekWorkbook(t))
	require.NoError(t, err)

	_, err = h.repo.Update(ctx, resp.UploadID, func(u *model.StagedUpload) (bool, error) {
		for _, sh := range u.Sheets {
			for i := range sh.Items {
				sh.Items[i].Status = model.ItemApproved
			}
		}
		return true, nil
	})
	require.NoError(t, err)

	err = h.svc.Delete(ctx, admin, resp.UploadID)
	assert.ErrorIs(t, err, errors.ErrConflict)

	u, err := h.svc.Get(ctx, resp.UploadID)
	require.NoError(t, err)
	assert.Equal(t, model.UploadFullyApproved, u.Status)
	ok, err := h.archive.Exists(ctx, u.ArchiveKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeletePartiallyApproved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.Upload(ctx, admin, "week.xlsx", weekWorkbook(t))
	require.NoError(t, err)

	updated, err := h.repo.Update(ctx, resp.UploadID, func(u *model.StagedUpload) (bool, error) {
		u.Sheet(model.SheetMemoryVerses).Item(0).Status = model.ItemApproved
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, model.UploadPartiallyApproved, updated.Status)

	require.NoError(t, h.svc.Delete(ctx, admin, resp.UploadID))

	_, err = h.svc.Get(ctx, resp.UploadID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = h.svc.Relationships(ctx, resp.UploadID, 1, 20)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	ok, err := h.archive.Exists(ctx, updated.ArchiveKey)
	require.NoError(t, err)
	assert.False(t, ok)

	events, err := h.svc.Events(ctx, resp.UploadID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventUploadDeleted, events[1].Type)

	err = h.svc.Delete(ctx, admin, resp.UploadID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
