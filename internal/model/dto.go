package model

import "time"

type UploadResponse struct {
	UploadID    string                     `json:"uploadId"`
	FileName    string                     `json:"fileName"`
	Summary     Summary                    `json:"summary"`
	ParseErrors []string                   `json:"parseErrors"`
	Sheets      map[SheetKey]SheetCounters `json:"sheets"`
	TotalDays   int                        `json:"totalDays"`
}

type SheetCounters struct {
	TotalItems   int `json:"totalItems"`
	PendingCount int `json:"pendingCount"`
}

// UploadOverview is the list-view shape of a StagedUpload.
type UploadOverview struct {
	ID               string                    `json:"id"`
	FileName         string                    `json:"fileName"`
	FileSize         int64                     `json:"fileSize"`
	UploadedAt       time.Time                 `json:"uploadedAt"`
	UploadedBy       AdminIdentity             `json:"uploadedBy"`
	Status           UploadStatus              `json:"status"`
	Summary          Summary                   `json:"summary"`
	ParseErrorCount  int                       `json:"parseErrorCount"`
	Sheets           map[SheetKey]SheetSummary `json:"sheets"`
	RelationshipDays int                       `json:"totalDays"`
}

type UploadSummaryResponse struct {
	ID          string                    `json:"id"`
	FileName    string                    `json:"fileName"`
	Status      UploadStatus              `json:"status"`
	Summary     Summary                   `json:"summary"`
	Sheets      map[SheetKey]SheetSummary `json:"sheets"`
	ParseErrors []string                  `json:"parseErrors"`
	TotalDays   int                       `json:"totalDays"`
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(total, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Total: total, Page: page, Limit: limit, TotalPages: pages}
}

// Bounds returns the slice bounds of the page inside a list of Total items.
func (p Pagination) Bounds() (start, end int) {
	start = (p.Page - 1) * p.Limit
	if start > p.Total {
		start = p.Total
	}
	end = start + p.Limit
	if end > p.Total {
		end = p.Total
	}
	return start, end
}

type SheetPage struct {
	Summary    SheetSummary `json:"summary"`
	Items      []StagedItem `json:"items"`
	Pagination Pagination   `json:"pagination"`
}

type UploadPage struct {
	Uploads    []UploadOverview `json:"uploads"`
	Pagination Pagination       `json:"pagination"`
}

type RelationshipPage struct {
	Relationships []DayRelationship `json:"relationships"`
	Pagination    Pagination        `json:"pagination"`
}

type ListFilter struct {
	Status UploadStatus
	Page   int
	Limit  int
}

type StatusRequest struct {
	Sheet    string     `json:"sheet" binding:"required"`
	RowIndex *int       `json:"rowIndex" binding:"required"`
	Status   ItemStatus `json:"status" binding:"required"`
}

type EditItemRequest struct {
	Sheet    string      `json:"sheet" binding:"required"`
	RowIndex *int        `json:"rowIndex" binding:"required"`
	Field    string      `json:"field" binding:"required"`
	Value    interface{} `json:"value"`
}

const (
	ModeBulk      = "bulk"
	ModeSelective = "selective"
)

type BulkRequest struct {
	Mode  string    `json:"mode" binding:"required"`
	Items []ItemRef `json:"items"`
}

type StatusResponse struct {
	Item    StagedItem    `json:"item"`
	Sheet   SheetSummary  `json:"sheetSummary"`
	Summary Summary       `json:"summary"`
	Status  UploadStatus  `json:"status"`
	Commit  *CommitResult `json:"commit,omitempty"`
}

type RejectResult struct {
	RejectedCount int `json:"rejected"`
}

type EditResult struct {
	Item             StagedItem `json:"item"`
	ValidationErrors []string   `json:"validationErrors"`
}
