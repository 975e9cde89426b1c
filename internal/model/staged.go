package model

import (
	"sort"
	"time"
)

type SheetKey string

const (
	SheetMemoryVerses        SheetKey = "memoryVerses"
	SheetKeyLessons          SheetKey = "keyLessons"
	SheetQuizzes5to8         SheetKey = "quizzes_5_8"
	SheetQuizzes9to12        SheetKey = "quizzes_9_12"
	SheetChildrenDevotionals SheetKey = "childrenDevotionals"
	SheetAdultDevotionals    SheetKey = "adultDevotionals"
)

// SheetOrder is the fixed iteration order used everywhere items are walked.
var SheetOrder = []SheetKey{
	SheetMemoryVerses,
	SheetKeyLessons,
	SheetQuizzes5to8,
	SheetQuizzes9to12,
	SheetChildrenDevotionals,
	SheetAdultDevotionals,
}

func ParseSheetKey(s string) (SheetKey, bool) {
	for _, k := range SheetOrder {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// SheetRank returns the position of k in SheetOrder, or len(SheetOrder) if unknown.
func SheetRank(k SheetKey) int {
	for i, key := range SheetOrder {
		if key == k {
			return i
		}
	}
	return len(SheetOrder)
}

type SheetKind string

const (
	KindMemoryVerse SheetKind = "memory_verse"
	KindKeyLesson   SheetKind = "key_lesson"
	KindQuiz        SheetKind = "quiz"
	KindDevotional  SheetKind = "devotional"
)

func (k SheetKey) Kind() SheetKind {
	switch k {
	case SheetMemoryVerses:
		return KindMemoryVerse
	case SheetKeyLessons:
		return KindKeyLesson
	case SheetQuizzes5to8, SheetQuizzes9to12:
		return KindQuiz
	default:
		return KindDevotional
	}
}

type AgeBand string

const (
	Band5to8  AgeBand = "5_8"
	Band9to12 AgeBand = "9_12"
)

var AgeBands = []AgeBand{Band5to8, Band9to12}

func ParseAgeBand(s string) (AgeBand, bool) {
	switch s {
	case "5_8", "5-8", "58":
		return Band5to8, true
	case "9_12", "9-12", "912":
		return Band9to12, true
	}
	return "", false
}

// Audience is the content-store audience of a band.
func (b AgeBand) Audience() Audience {
	if b == Band9to12 {
		return AudienceTrailblazerTeen
	}
	return AudienceSproutExplorer
}

type Audience string

const (
	AudienceSproutExplorer  Audience = "SPROUT_EXPLORER"
	AudienceTrailblazerTeen Audience = "TRAILBLAZER_TEEN"
	AudienceParent          Audience = "PARENT"
)

type ItemStatus string

const (
	ItemPending  ItemStatus = "pending"
	ItemApproved ItemStatus = "approved"
	ItemRejected ItemStatus = "rejected"
)

func (s ItemStatus) Valid() bool {
	return s == ItemPending || s == ItemApproved || s == ItemRejected
}

type UploadStatus string

const (
	UploadPending           UploadStatus = "PENDING"
	UploadPartiallyApproved UploadStatus = "PARTIALLY_APPROVED"
	UploadFullyApproved     UploadStatus = "FULLY_APPROVED"
	UploadRejected          UploadStatus = "REJECTED"
)

func (s UploadStatus) Valid() bool {
	switch s {
	case UploadPending, UploadPartiallyApproved, UploadFullyApproved, UploadRejected:
		return true
	}
	return false
}

// StagedItem is one spreadsheet row awaiting moderation. Index is its
// zero-based row position inside the sheet and never changes.
type StagedItem struct {
	Index            int                    `json:"index"`
	DayID            string                 `json:"dayId"`
	Date             string                 `json:"date,omitempty"`
	Status           ItemStatus             `json:"status"`
	Data             map[string]interface{} `json:"data"`
	ValidationErrors []string               `json:"validationErrors"`
}

type SheetSummary struct {
	SheetName     string `json:"sheetName"`
	TotalItems    int    `json:"totalItems"`
	PendingCount  int    `json:"pendingCount"`
	ApprovedCount int    `json:"approvedCount"`
	RejectedCount int    `json:"rejectedCount"`
}

type StagedSheet struct {
	SheetSummary
	Items []StagedItem `json:"items"`
}

// Item finds an item by its stable index. Items are kept sorted by index.
func (s *StagedSheet) Item(index int) *StagedItem {
	pos := s.position(index)
	if pos < 0 {
		return nil
	}
	return &s.Items[pos]
}

// Remove deletes the item with the given index and reports whether it existed.
func (s *StagedSheet) Remove(index int) bool {
	pos := s.position(index)
	if pos < 0 {
		return false
	}
	s.Items = append(s.Items[:pos], s.Items[pos+1:]...)
	return true
}

func (s *StagedSheet) position(index int) int {
	pos := sort.Search(len(s.Items), func(i int) bool { return s.Items[i].Index >= index })
	if pos < len(s.Items) && s.Items[pos].Index == index {
		return pos
	}
	return -1
}

type Summary struct {
	TotalItems      int `json:"totalItems"`
	PendingApproval int `json:"pendingApproval"`
	Approved        int `json:"approved"`
	Rejected        int `json:"rejected"`
}

type AdminIdentity struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}

type StagedUpload struct {
	ID            string                    `json:"id"`
	FileName      string                    `json:"fileName"`
	FileSize      int64                     `json:"fileSize"`
	UploadedAt    time.Time                 `json:"uploadedAt"`
	UploadedBy    AdminIdentity             `json:"uploadedBy"`
	Status        UploadStatus              `json:"status"`
	Summary       Summary                   `json:"summary"`
	ParseErrors   []string                  `json:"parseErrors"`
	Sheets        map[SheetKey]*StagedSheet `json:"sheets"`
	Relationships []DayRelationship         `json:"relationships"`
	ArchiveKey    string                    `json:"archiveKey,omitempty"`
}

// Sheet returns the sheet for key, or nil when the upload has none.
func (u *StagedUpload) Sheet(key SheetKey) *StagedSheet {
	if u.Sheets == nil {
		return nil
	}
	return u.Sheets[key]
}

// EnsureSheets makes sure every known sheet key is present.
func (u *StagedUpload) EnsureSheets() {
	if u.Sheets == nil {
		u.Sheets = make(map[SheetKey]*StagedSheet, len(SheetOrder))
	}
	for _, key := range SheetOrder {
		if u.Sheets[key] == nil {
			u.Sheets[key] = &StagedSheet{SheetSummary: SheetSummary{SheetName: string(key)}, Items: []StagedItem{}}
		}
	}
}

type LinkSlot string

const (
	SlotMemoryVerse5to8    LinkSlot = "memoryVerse_5_8"
	SlotMemoryVerse9to12   LinkSlot = "memoryVerse_9_12"
	SlotKeyLessons5to8     LinkSlot = "keyLessons_5_8"
	SlotKeyLessons9to12    LinkSlot = "keyLessons_9_12"
	SlotQuiz5to8           LinkSlot = "quiz_5_8"
	SlotQuiz9to12          LinkSlot = "quiz_9_12"
	SlotChildrenDevotional LinkSlot = "childrenDevotional"
	SlotAdultDevotional    LinkSlot = "adultDevotional"
)

type DayLink struct {
	Index         int        `json:"index"`
	Sheet         SheetKey   `json:"sheet"`
	Status        ItemStatus `json:"status"`
	Reference     string     `json:"reference,omitempty"`
	Title         string     `json:"title,omitempty"`
	Count         int        `json:"count,omitempty"`
	QuestionCount int        `json:"questionCount,omitempty"`
}

type DayRelationship struct {
	DayID        string               `json:"dayId"`
	Date         string               `json:"date,omitempty"`
	BibleReading string               `json:"bibleReading,omitempty"`
	Links        map[LinkSlot]DayLink `json:"links"`
}

// CommitResult is the outcome of one approval batch. CommittedCount never
// exceeds ApprovedCount; every shortfall has one entry in Errors.
type CommitResult struct {
	ApprovedCount  int      `json:"approved"`
	CommittedCount int      `json:"committed"`
	Errors         []string `json:"errors"`
}

// ItemRef addresses one staged item.
type ItemRef struct {
	Sheet SheetKey `json:"sheet"`
	Index int      `json:"rowIndex"`
}

// CommitItem is an item handed to the commit engine.
type CommitItem struct {
	UploadID string
	Sheet    SheetKey
	Item     StagedItem
}
