package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Keys of StagedItem.Data.
const (
	FieldBibleReading = "bibleReading"

	FieldReference      = "reference"
	FieldVerseText5to8  = "verseText_5_8"
	FieldVerseText9to12 = "verseText_9_12"
	FieldTopic          = "topic"
	FieldHints          = "hints"
	FieldLessons5to8    = "lessons_5_8"
	FieldLessons9to12   = "lessons_9_12"
	FieldTitle          = "title"
	FieldDescription    = "description"
	FieldDevotional     = "devotional"
	FieldQuestions      = "questions"
	FieldSubtitle       = "subtitle"
	FieldBibleReference = "bibleReference"
	FieldVerseText      = "verseText"
	FieldContent        = "content"
	FieldFaithSpeaks    = "faithSpeaks"
	FieldWordChallenge  = "wordChallenge"
	FieldPrayerPrompt   = "prayerPrompt"
	FieldReflections    = "reflectionQuestions"
	FieldTags           = "tags"
)

// VerseTextField returns the data key holding the verse text for a band.
func VerseTextField(b AgeBand) string {
	if b == Band9to12 {
		return FieldVerseText9to12
	}
	return FieldVerseText5to8
}

func LessonsField(b AgeBand) string {
	if b == Band9to12 {
		return FieldLessons9to12
	}
	return FieldLessons5to8
}

type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// String reads a string field; non-string scalars are formatted.
func (i StagedItem) String(field string) string {
	v, ok := i.Data[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Strings reads a list field. After a store round-trip lists come back as
// []interface{}, so both shapes are accepted.
func (i StagedItem) Strings(field string) []string {
	var out []string
	if err := DecodeField(i.Data, field, &out); err != nil {
		if s := i.String(field); s != "" {
			return []string{s}
		}
		return nil
	}
	return out
}

func (i StagedItem) Questions() []Question {
	var out []Question
	if err := DecodeField(i.Data, FieldQuestions, &out); err != nil {
		return nil
	}
	return out
}

// Bands lists the age bands a memory verse or key lesson row carries content for.
func (i StagedItem) Bands(kind SheetKind) []AgeBand {
	var bands []AgeBand
	for _, b := range AgeBands {
		switch kind {
		case KindMemoryVerse:
			if i.String(VerseTextField(b)) != "" {
				bands = append(bands, b)
			}
		case KindKeyLesson:
			if len(i.Strings(LessonsField(b))) > 0 {
				bands = append(bands, b)
			}
		}
	}
	return bands
}

// Label is the human-facing name used in commit errors.
func (i StagedItem) Label(kind SheetKind) string {
	switch kind {
	case KindMemoryVerse:
		return i.String(FieldReference)
	case KindKeyLesson:
		if i.DayID != "" {
			return "day " + i.DayID
		}
		return ""
	default:
		return i.String(FieldTitle)
	}
}

// DecodeField converts data[field] into out through JSON.
func DecodeField(data map[string]interface{}, field string, out interface{}) error {
	v, ok := data[field]
	if !ok || v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", field, err)
	}
	return nil
}
