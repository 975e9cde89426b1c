package model

import "encoding/json"

// DeriveSheetSummary tallies item statuses. Counts are always recomputed
// from the items, never patched incrementally.
func DeriveSheetSummary(name string, items []StagedItem) SheetSummary {
	s := SheetSummary{SheetName: name, TotalItems: len(items)}
	for _, item := range items {
		switch item.Status {
		case ItemApproved:
			s.ApprovedCount++
		case ItemRejected:
			s.RejectedCount++
		default:
			s.PendingCount++
		}
	}
	return s
}

func DeriveStatus(s Summary) UploadStatus {
	switch {
	case s.TotalItems == 0:
		return UploadPending
	case s.PendingApproval > 0 && s.Approved > 0:
		return UploadPartiallyApproved
	case s.PendingApproval > 0:
		return UploadPending
	case s.Approved > 0:
		return UploadFullyApproved
	default:
		return UploadRejected
	}
}

// Recompute refreshes every sheet summary, the top-level summary, the
// derived status and the statuses mirrored into relationship links.
// Callers run it inside the same store update that mutated the items.
func (u *StagedUpload) Recompute() {
	u.EnsureSheets()

	var total Summary
	for _, key := range SheetOrder {
		sheet := u.Sheets[key]
		sheet.SheetSummary = DeriveSheetSummary(string(key), sheet.Items)
		total.TotalItems += sheet.TotalItems
		total.PendingApproval += sheet.PendingCount
		total.Approved += sheet.ApprovedCount
		total.Rejected += sheet.RejectedCount
	}
	u.Summary = total
	u.Status = DeriveStatus(total)

	for i := range u.Relationships {
		rel := &u.Relationships[i]
		for slot, link := range rel.Links {
			if item := u.Sheet(link.Sheet).Item(link.Index); item != nil {
				link.Status = item.Status
				rel.Links[slot] = link
			}
		}
	}
}

// Clone returns a deep copy, so stores never share item maps with callers.
func (u *StagedUpload) Clone() *StagedUpload {
	if u == nil {
		return nil
	}
	out := *u
	out.ParseErrors = append([]string(nil), u.ParseErrors...)

	if u.Sheets != nil {
		out.Sheets = make(map[SheetKey]*StagedSheet, len(u.Sheets))
		for key, sheet := range u.Sheets {
			if sheet == nil {
				continue
			}
			cp := &StagedSheet{SheetSummary: sheet.SheetSummary, Items: make([]StagedItem, len(sheet.Items))}
			for i, item := range sheet.Items {
				cp.Items[i] = item.Clone()
			}
			out.Sheets[key] = cp
		}
	}

	if u.Relationships != nil {
		out.Relationships = make([]DayRelationship, len(u.Relationships))
		for i, rel := range u.Relationships {
			links := make(map[LinkSlot]DayLink, len(rel.Links))
			for slot, link := range rel.Links {
				links[slot] = link
			}
			rel.Links = links
			out.Relationships[i] = rel
		}
	}
	return &out
}

func (i StagedItem) Clone() StagedItem {
	out := i
	out.ValidationErrors = append([]string(nil), i.ValidationErrors...)
	out.Data = cloneValue(i.Data).(map[string]interface{})
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if val == nil {
			return map[string]interface{}{}
		}
		m := make(map[string]interface{}, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	case []string:
		return append([]string(nil), val...)
	case []Question:
		out := make([]Question, len(val))
		for i, q := range val {
			q.Options = append([]string(nil), q.Options...)
			out[i] = q
		}
		return out
	case nil:
		return nil
	default:
		// Anything else is a scalar or an unknown composite; round-trip it.
		if isScalar(val) {
			return val
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return val
		}
		var out interface{}
		if json.Unmarshal(raw, &out) != nil {
			return val
		}
		return out
	}
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, int, int64, float64, json.Number:
		return true
	}
	return false
}

// Overview strips items and relationships for list responses.
func (u *StagedUpload) Overview() UploadOverview {
	sheets := make(map[SheetKey]SheetSummary, len(u.Sheets))
	for key, sheet := range u.Sheets {
		if sheet != nil {
			sheets[key] = sheet.SheetSummary
		}
	}
	return UploadOverview{
		ID:               u.ID,
		FileName:         u.FileName,
		FileSize:         u.FileSize,
		UploadedAt:       u.UploadedAt,
		UploadedBy:       u.UploadedBy,
		Status:           u.Status,
		Summary:          u.Summary,
		ParseErrorCount:  len(u.ParseErrors),
		Sheets:           sheets,
		RelationshipDays: len(u.Relationships),
	}
}

func (u *StagedUpload) SummaryView() UploadSummaryResponse {
	return UploadSummaryResponse{
		ID:          u.ID,
		FileName:    u.FileName,
		Status:      u.Status,
		Summary:     u.Summary,
		Sheets:      u.Overview().Sheets,
		ParseErrors: u.ParseErrors,
		TotalDays:   len(u.Relationships),
	}
}
