package linker

import (
	"sort"

	"planted-staging/internal/config"
	"planted-staging/internal/logger"
	"planted-staging/internal/model"

	"github.com/rs/zerolog"
)

// Linker groups staged items by day. DayID is an opaque key: it is compared
// and sorted as a string, never parsed.
type Linker struct {
	policy string
	log    zerolog.Logger
}

func New(policy string) *Linker {
	if policy != config.DuplicateDayFirstWins {
		policy = config.DuplicateDayLastWins
	}
	return &Linker{
		policy: policy,
		log:    logger.Component("linker"),
	}
}

func (l *Linker) Link(sheets map[model.SheetKey][]model.StagedItem) []model.DayRelationship {
	byDay := make(map[string]*model.DayRelationship)

	for _, key := range model.SheetOrder {
		for _, item := range sheets[key] {
			if item.DayID == "" {
				continue
			}

			rel, ok := byDay[item.DayID]
			if !ok {
				rel = &model.DayRelationship{DayID: item.DayID, Links: make(map[model.LinkSlot]model.DayLink)}
				byDay[item.DayID] = rel
			}
			if rel.Date == "" {
				rel.Date = item.Date
			}
			if rel.BibleReading == "" {
				rel.BibleReading = item.String(model.FieldBibleReading)
			}

			for _, slot := range slotsFor(key, item) {
				if prev, taken := rel.Links[slot]; taken {
					l.log.Debug().
						Str("day_id", item.DayID).
						Str("slot", string(slot)).
						Int("kept_index", l.keptIndex(prev.Index, item.Index)).
						Msg("Duplicate day slot")
					if l.policy == config.DuplicateDayFirstWins {
						continue
					}
				}
				rel.Links[slot] = linkFor(key, item, slot)
			}
		}
	}

	relationships := make([]model.DayRelationship, 0, len(byDay))
	for _, rel := range byDay {
		relationships = append(relationships, *rel)
	}
	sort.Slice(relationships, func(i, j int) bool {
		return relationships[i].DayID < relationships[j].DayID
	})
	return relationships
}

// LinkUpload rebuilds the relationships of an upload from its current items.
func (l *Linker) LinkUpload(u *model.StagedUpload) {
	sheets := make(map[model.SheetKey][]model.StagedItem, len(u.Sheets))
	for key, sheet := range u.Sheets {
		if sheet != nil {
			sheets[key] = sheet.Items
		}
	}
	u.Relationships = l.Link(sheets)
}

func (l *Linker) keptIndex(prev, next int) int {
	if l.policy == config.DuplicateDayFirstWins {
		return prev
	}
	return next
}

func slotsFor(key model.SheetKey, item model.StagedItem) []model.LinkSlot {
	switch key {
	case model.SheetMemoryVerses:
		return bandSlots(item.Bands(model.KindMemoryVerse), model.SlotMemoryVerse5to8, model.SlotMemoryVerse9to12)
	case model.SheetKeyLessons:
		return bandSlots(item.Bands(model.KindKeyLesson), model.SlotKeyLessons5to8, model.SlotKeyLessons9to12)
	case model.SheetQuizzes5to8:
		return []model.LinkSlot{model.SlotQuiz5to8}
	case model.SheetQuizzes9to12:
		return []model.LinkSlot{model.SlotQuiz9to12}
	case model.SheetChildrenDevotionals:
		return []model.LinkSlot{model.SlotChildrenDevotional}
	case model.SheetAdultDevotionals:
		return []model.LinkSlot{model.SlotAdultDevotional}
	}
	return nil
}

// bandSlots maps bands onto slots. Rows without content for either band
// still take the younger slot so they stay visible on their day.
func bandSlots(bands []model.AgeBand, young, old model.LinkSlot) []model.LinkSlot {
	if len(bands) == 0 {
		return []model.LinkSlot{young}
	}
	slots := make([]model.LinkSlot, 0, len(bands))
	for _, b := range bands {
		if b == model.Band9to12 {
			slots = append(slots, old)
		} else {
			slots = append(slots, young)
		}
	}
	return slots
}

func linkFor(key model.SheetKey, item model.StagedItem, slot model.LinkSlot) model.DayLink {
	link := model.DayLink{Index: item.Index, Sheet: key, Status: item.Status}
	switch key.Kind() {
	case model.KindMemoryVerse:
		link.Reference = item.String(model.FieldReference)
	case model.KindKeyLesson:
		band := model.Band5to8
		if slot == model.SlotKeyLessons9to12 {
			band = model.Band9to12
		}
		link.Count = len(item.Strings(model.LessonsField(band)))
	case model.KindQuiz:
		link.Title = item.String(model.FieldTitle)
		link.QuestionCount = len(item.Questions())
	case model.KindDevotional:
		link.Title = item.String(model.FieldTitle)
	}
	return link
}
