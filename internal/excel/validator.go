package excel

import (
	"regexp"
	"strconv"
	"strings"

	"planted-staging/internal/model"
	"planted-staging/pkg/errors"
)

// Reference is a parsed "Book Chapter:Verse[-Verse]" citation.
type Reference struct {
	Book       string
	Chapter    int
	VerseStart int
	VerseEnd   int
}

type Validator struct {
	referenceRegex *regexp.Regexp
}

func NewValidator() *Validator {
	return &Validator{
		referenceRegex: regexp.MustCompile(`^((?:[1-3]\s*)?[A-Za-z][A-Za-z .']*?)\s+(\d{1,3}):(\d{1,3})(?:\s*[-–]\s*(\d{1,3}))?$`),
	}
}

func (v *Validator) ParseReference(ref string) (Reference, bool) {
	m := v.referenceRegex.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return Reference{}, false
	}
	chapter, _ := strconv.Atoi(m[2])
	start, _ := strconv.Atoi(m[3])
	end := start
	if m[4] != "" {
		end, _ = strconv.Atoi(m[4])
	}
	if end < start {
		return Reference{}, false
	}
	return Reference{Book: strings.TrimSpace(m[1]), Chapter: chapter, VerseStart: start, VerseEnd: end}, true
}

// ValidateItem runs the required-field checks for a row of the given sheet.
// The result is advisory: items are staged regardless.
func (v *Validator) ValidateItem(sheet model.SheetKey, item model.StagedItem) []errors.ValidationError {
	switch sheet.Kind() {
	case model.KindMemoryVerse:
		return v.validateMemoryVerse(item)
	case model.KindKeyLesson:
		return v.validateKeyLesson(item)
	case model.KindQuiz:
		return v.validateQuiz(item)
	default:
		return v.validateDevotional(item)
	}
}

func (v *Validator) validateMemoryVerse(item model.StagedItem) []errors.ValidationError {
	var errs []errors.ValidationError

	ref := item.String(model.FieldReference)
	if ref == "" {
		errs = append(errs, required(model.FieldReference))
	} else if _, ok := v.ParseReference(ref); !ok {
		errs = append(errs, errors.ValidationError{
			Field:   model.FieldReference,
			Value:   ref,
			Message: "expected Book Chapter:Verse",
		})
	}

	if len(item.Bands(model.KindMemoryVerse)) == 0 {
		errs = append(errs, errors.ValidationError{Field: "verseText", Message: "at least one age group verse text is required"})
	}
	return errs
}

func (v *Validator) validateKeyLesson(item model.StagedItem) []errors.ValidationError {
	if len(item.Bands(model.KindKeyLesson)) == 0 {
		return []errors.ValidationError{{Field: "lessons", Message: "at least one lesson is required"}}
	}
	return nil
}

func (v *Validator) validateQuiz(item model.StagedItem) []errors.ValidationError {
	questions := item.Questions()
	if len(questions) == 0 {
		return []errors.ValidationError{{Field: model.FieldQuestions, Message: "at least one question is required"}}
	}

	var errs []errors.ValidationError
	for i, q := range questions {
		field := "q" + strconv.Itoa(i+1)
		if len(q.Options) < 2 {
			errs = append(errs, errors.ValidationError{Field: field, Message: "needs at least two options"})
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			errs = append(errs, errors.ValidationError{Field: field + "Answer", Message: "does not match any option"})
		}
	}
	return errs
}

func (v *Validator) validateDevotional(item model.StagedItem) []errors.ValidationError {
	var errs []errors.ValidationError
	for _, field := range []string{model.FieldTitle, model.FieldBibleReference, model.FieldVerseText, model.FieldContent} {
		if item.String(field) == "" {
			errs = append(errs, required(field))
		}
	}
	return errs
}

func required(field string) errors.ValidationError {
	return errors.ValidationError{Field: field, Message: "is required"}
}
