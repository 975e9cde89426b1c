package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"planted-staging/internal/db"
	"planted-staging/internal/excel"
	"planted-staging/internal/linker"
	"planted-staging/internal/lock"
	"planted-staging/internal/logger"
	"planted-staging/internal/model"
	"planted-staging/internal/queue"
	"planted-staging/pkg/errors"

	"github.com/rs/zerolog"
)

// Committer pushes newly approved items to the content store.
type Committer interface {
	Commit(ctx context.Context, items []model.CommitItem) model.CommitResult
}

// Engine applies moderation decisions to staged items. Every operation runs
// under the upload's lock, so two approvals of the same upload never commit
// the same item twice.
type Engine struct {
	repo      db.Repository
	locker    lock.Locker
	committer Committer
	linker    *linker.Linker
	strategy  excel.ParsingStrategy
	publisher queue.Publisher
	log       zerolog.Logger
}

func NewEngine(
	repo db.Repository,
	locker lock.Locker,
	committer Committer,
	linker *linker.Linker,
	strategy excel.ParsingStrategy,
	publisher queue.Publisher,
) *Engine {
	return &Engine{
		repo:      repo,
		locker:    locker,
		committer: committer,
		linker:    linker,
		strategy:  strategy,
		publisher: publisher,
		log:       logger.Component("moderation"),
	}
}

func (e *Engine) withLock(ctx context.Context, uploadID string, fn func() error) error {
	unlock, err := e.locker.Lock(ctx, uploadID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func findItem(u *model.StagedUpload, sheet model.SheetKey, index int) (*model.StagedItem, error) {
	sh := u.Sheet(sheet)
	if sh == nil {
		return nil, errors.NotFound("sheet", string(sheet))
	}
	item := sh.Item(index)
	if item == nil {
		return nil, errors.NotFound("item", fmt.Sprintf("%s[%d]", sheet, index))
	}
	return item, nil
}

func checkTransition(from, to model.ItemStatus) error {
	if from == model.ItemRejected && to == model.ItemApproved {
		return errors.Conflict("rejected items must be reopened before they can be approved")
	}
	return nil
}

// SetItemStatus moves one item to status. Approving a pending item commits
// it before returning.
func (e *Engine) SetItemStatus(ctx context.Context, actor model.AdminIdentity, uploadID string, sheet model.SheetKey, index int, status model.ItemStatus) (*model.StatusResponse, error) {
	if !status.Valid() {
		return nil, errors.InvalidInput("unknown status %q", status)
	}

	var resp *model.StatusResponse
	err := e.withLock(ctx, uploadID, func() error {
		var from model.ItemStatus
		var item model.StagedItem

		updated, err := e.repo.Update(ctx, uploadID, func(u *model.StagedUpload) (bool, error) {
			it, err := findItem(u, sheet, index)
			if err != nil {
				return false, err
			}
			from = it.Status
			if from == status {
				item = it.Clone()
				return false, nil
			}
			if err := checkTransition(from, status); err != nil {
				return false, err
			}
			it.Status = status
			item = it.Clone()
			return true, nil
		})
		if err != nil {
			return err
		}

		resp = &model.StatusResponse{
			Item:    item,
			Sheet:   updated.Sheet(sheet).SheetSummary,
			Summary: updated.Summary,
			Status:  updated.Status,
		}
		if from == status {
			return nil
		}

		// The item is already stored as approved, so its commit has to finish
		// even if the caller goes away.
		ctx := context.WithoutCancel(ctx)
		if status == model.ItemApproved {
			result := e.committer.Commit(ctx, []model.CommitItem{{UploadID: uploadID, Sheet: sheet, Item: item}})
			resp.Commit = &result
		}

		e.log.Info().
			Str("upload_id", uploadID).
			Str("sheet", string(sheet)).
			Int("index", index).
			Str("from", string(from)).
			Str("to", string(status)).
			Msg("Item status changed")

		e.publish(ctx, uploadID, model.EventItemStatusChanged, actor, map[string]interface{}{
			"sheet":  sheet,
			"index":  index,
			"from":   from,
			"to":     status,
			"commit": resp.Commit,
		})
		return nil
	})
	return resp, err
}

// BulkApprove approves every pending item (mode "bulk") or the pending items
// among refs (mode "selective") and commits them in sheet/index order.
func (e *Engine) BulkApprove(ctx context.Context, actor model.AdminIdentity, uploadID, mode string, refs []model.ItemRef) (*model.CommitResult, error) {
	if err := checkMode(mode, refs); err != nil {
		return nil, err
	}

	result := model.CommitResult{Errors: []string{}}
	err := e.withLock(ctx, uploadID, func() error {
		var batch []model.CommitItem

		_, err := e.repo.Update(ctx, uploadID, func(u *model.StagedUpload) (bool, error) {
			batch = nil
			targets, err := selectPending(u, mode, refs)
			if err != nil {
				return false, err
			}
			for _, ref := range targets {
				it := u.Sheet(ref.Sheet).Item(ref.Index)
				it.Status = model.ItemApproved
				batch = append(batch, model.CommitItem{UploadID: u.ID, Sheet: ref.Sheet, Item: it.Clone()})
			}
			return len(batch) > 0, nil
		})
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		// Approvals are persisted; the batch runs to completion regardless of
		// the caller.
		ctx := context.WithoutCancel(ctx)
		result = e.committer.Commit(ctx, batch)

		e.log.Info().
			Str("upload_id", uploadID).
			Str("mode", mode).
			Int("approved", result.ApprovedCount).
			Int("committed", result.CommittedCount).
			Msg("Items approved")

		e.publish(ctx, uploadID, model.EventItemsApproved, actor, map[string]interface{}{
			"mode":   mode,
			"items":  refsOf(batch),
			"result": result,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// BulkReject is BulkApprove without the commit.
func (e *Engine) BulkReject(ctx context.Context, actor model.AdminIdentity, uploadID, mode string, refs []model.ItemRef) (*model.RejectResult, error) {
	if err := checkMode(mode, refs); err != nil {
		return nil, err
	}

	var rejected []model.ItemRef
	err := e.withLock(ctx, uploadID, func() error {
		_, err := e.repo.Update(ctx, uploadID, func(u *model.StagedUpload) (bool, error) {
			targets, err := selectPending(u, mode, refs)
			if err != nil {
				return false, err
			}
			for _, ref := range targets {
				u.Sheet(ref.Sheet).Item(ref.Index).Status = model.ItemRejected
			}
			rejected = targets
			return len(targets) > 0, nil
		})
		if err != nil || len(rejected) == 0 {
			return err
		}

		e.log.Info().Str("upload_id", uploadID).Str("mode", mode).Int("rejected", len(rejected)).Msg("Items rejected")
		e.publish(ctx, uploadID, model.EventItemsRejected, actor, map[string]interface{}{
			"mode":  mode,
			"items": rejected,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model.RejectResult{RejectedCount: len(rejected)}, nil
}

// EditItem replaces one field of a pending or rejected item, revalidates it
// and rebuilds the day relationships.
func (e *Engine) EditItem(ctx context.Context, actor model.AdminIdentity, uploadID string, sheet model.SheetKey, index int, field string, value interface{}) (*model.EditResult, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, errors.InvalidInput("field is required")
	}

	var result *model.EditResult
	err := e.withLock(ctx, uploadID, func() error {
		_, err := e.repo.Update(ctx, uploadID, func(u *model.StagedUpload) (bool, error) {
			it, err := findItem(u, sheet, index)
			if err != nil {
				return false, err
			}
			if it.Status == model.ItemApproved {
				return false, errors.Conflict("approved items cannot be edited")
			}
			if err := applyEdit(it, field, value); err != nil {
				return false, err
			}
			it.ValidationErrors = e.strategy.Revalidate(sheet, *it)
			e.linker.LinkUpload(u)
			result = &model.EditResult{Item: it.Clone(), ValidationErrors: it.ValidationErrors}
			return true, nil
		})
		if err != nil {
			return err
		}

		e.publish(ctx, uploadID, model.EventItemEdited, actor, map[string]interface{}{
			"sheet": sheet,
			"index": index,
			"field": field,
		})
		return nil
	})
	return result, err
}

// DeleteItem drops a pending or rejected item from its sheet. Indexes of the
// remaining items do not change.
func (e *Engine) DeleteItem(ctx context.Context, actor model.AdminIdentity, uploadID string, sheet model.SheetKey, index int) (*model.UploadSummaryResponse, error) {
	var resp *model.UploadSummaryResponse
	err := e.withLock(ctx, uploadID, func() error {
		updated, err := e.repo.Update(ctx, uploadID, func(u *model.StagedUpload) (bool, error) {
			it, err := findItem(u, sheet, index)
			if err != nil {
				return false, err
			}
			if it.Status == model.ItemApproved {
				return false, errors.Conflict("approved items cannot be deleted")
			}
			u.Sheet(sheet).Remove(index)
			e.linker.LinkUpload(u)
			return true, nil
		})
		if err != nil {
			return err
		}

		view := updated.SummaryView()
		resp = &view
		e.publish(ctx, uploadID, model.EventItemDeleted, actor, map[string]interface{}{
			"sheet": sheet,
			"index": index,
		})
		return nil
	})
	return resp, err
}

func (e *Engine) publish(ctx context.Context, uploadID string, eventType model.EventType, actor model.AdminIdentity, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		e.log.Warn().Err(err).Str("type", string(eventType)).Msg("Failed to encode event payload")
		return
	}
	event := model.StagingEvent{UploadID: uploadID, Type: eventType, Actor: actor.ID, Payload: raw}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.log.Warn().Err(err).Str("upload_id", uploadID).Str("type", string(eventType)).Msg("Failed to publish staging event")
	}
}

func checkMode(mode string, refs []model.ItemRef) error {
	switch mode {
	case model.ModeBulk:
		return nil
	case model.ModeSelective:
		if len(refs) == 0 {
			return errors.InvalidInput("selective mode needs at least one item")
		}
		return nil
	}
	return errors.InvalidInput("mode must be %q or %q", model.ModeBulk, model.ModeSelective)
}

// selectPending resolves the targets of a bulk operation to the pending items
// among them, in sheet order then index order. Every selective ref must exist.
func selectPending(u *model.StagedUpload, mode string, refs []model.ItemRef) ([]model.ItemRef, error) {
	var out []model.ItemRef

	if mode == model.ModeBulk {
		for _, key := range model.SheetOrder {
			sh := u.Sheet(key)
			if sh == nil {
				continue
			}
			for _, it := range sh.Items {
				if it.Status == model.ItemPending {
					out = append(out, model.ItemRef{Sheet: key, Index: it.Index})
				}
			}
		}
		return out, nil
	}

	seen := make(map[model.ItemRef]bool, len(refs))
	for _, ref := range refs {
		if _, err := findItem(u, ref.Sheet, ref.Index); err != nil {
			return nil, err
		}
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := model.SheetRank(out[i].Sheet), model.SheetRank(out[j].Sheet)
		if ri != rj {
			return ri < rj
		}
		return out[i].Index < out[j].Index
	})

	pending := out[:0]
	for _, ref := range out {
		if u.Sheet(ref.Sheet).Item(ref.Index).Status == model.ItemPending {
			pending = append(pending, ref)
		}
	}
	return pending, nil
}

func refsOf(batch []model.CommitItem) []model.ItemRef {
	refs := make([]model.ItemRef, len(batch))
	for i, it := range batch {
		refs[i] = model.ItemRef{Sheet: it.Sheet, Index: it.Item.Index}
	}
	return refs
}

// applyEdit writes value into the item. "date" and "dayId" address the row
// itself; anything else is a data field, removed when value is empty.
func applyEdit(it *model.StagedItem, field string, value interface{}) error {
	switch field {
	case "date":
		raw := ""
		if value != nil {
			raw = strings.TrimSpace(fmt.Sprint(value))
		}
		date, err := excel.NormalizeDate(raw)
		if err != nil {
			return errors.InvalidInput("date %q: %v", raw, err)
		}
		it.Date = date
		if date != "" {
			it.DayID = excel.DayIDFromDate(date)
		}
	case "dayId":
		if value == nil {
			return errors.InvalidInput("dayId cannot be empty")
		}
		dayID := strings.TrimSpace(fmt.Sprint(value))
		if dayID == "" {
			return errors.InvalidInput("dayId cannot be empty")
		}
		it.DayID = dayID
	default:
		if it.Data == nil {
			it.Data = map[string]interface{}{}
		}
		if s, ok := value.(string); value == nil || (ok && strings.TrimSpace(s) == "") {
			delete(it.Data, field)
			return nil
		}
		it.Data[field] = value
	}
	return nil
}
