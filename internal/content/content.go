package content

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"planted-staging/internal/model"
	"planted-staging/pkg/errors"
)

// Store is the canonical content service. Every call creates exactly one
// record and fails with a descriptive error on invalid input.
type Store interface {
	CreateDevotional(ctx context.Context, in DevotionalInput) (string, error)
	CreateMemoryVerse(ctx context.Context, in MemoryVerseInput) (string, error)
	CreateKeyLesson(ctx context.Context, in KeyLessonInput) (string, error)
	CreateQuiz(ctx context.Context, in QuizInput, linkedDevotionalID string) (string, error)
}

type DevotionalInput struct {
	Title               string         `json:"title"`
	Subtitle            string         `json:"subtitle,omitempty"`
	BibleReference      string         `json:"bibleReference"`
	VerseText           string         `json:"verseText"`
	Content             string         `json:"content"`
	FaithSpeaks         string         `json:"faithSpeaks,omitempty"`
	WordChallenge       string         `json:"wordChallenge,omitempty"`
	PrayerPrompt        string         `json:"prayerPrompt,omitempty"`
	ReflectionQuestions []string       `json:"reflectionQuestions,omitempty"`
	Tags                []string       `json:"tags,omitempty"`
	Audience            model.Audience `json:"audience"`
	DayID               string         `json:"dayId,omitempty"`
	PublishDate         string         `json:"publishDate,omitempty"`
}

func (in DevotionalInput) Validate() error {
	return requireFields(map[string]string{
		"title":          in.Title,
		"bibleReference": in.BibleReference,
		"verseText":      in.VerseText,
		"content":        in.Content,
	})
}

type MemoryVerseInput struct {
	Reference   string         `json:"reference"`
	Book        string         `json:"book,omitempty"`
	Chapter     int            `json:"chapter,omitempty"`
	VerseStart  int            `json:"verseStart,omitempty"`
	VerseEnd    int            `json:"verseEnd,omitempty"`
	VerseText   string         `json:"verseText"`
	Topic       string         `json:"topic,omitempty"`
	Hints       []string       `json:"hints,omitempty"`
	Audience    model.Audience `json:"audience"`
	DayID       string         `json:"dayId,omitempty"`
	PublishDate string         `json:"publishDate,omitempty"`
}

func (in MemoryVerseInput) Validate() error {
	return requireFields(map[string]string{
		"reference": in.Reference,
		"verseText": in.VerseText,
	})
}

// Lesson is one numbered key lesson; Order starts at 1.
type Lesson struct {
	Order int    `json:"order"`
	Text  string `json:"text"`
}

type KeyLessonInput struct {
	Lessons      []Lesson       `json:"lessons"`
	BibleReading string         `json:"bibleReading,omitempty"`
	Audience     model.Audience `json:"audience"`
	DayID        string         `json:"dayId,omitempty"`
	PublishDate  string         `json:"publishDate,omitempty"`
}

func (in KeyLessonInput) Validate() error {
	if len(in.Lessons) == 0 {
		return errors.InvalidInput("lessons is required")
	}
	for i, l := range in.Lessons {
		if strings.TrimSpace(l.Text) == "" {
			return errors.InvalidInput("lesson %d has no text", i+1)
		}
	}
	return nil
}

const (
	QuestionMultipleChoice = "MULTIPLE_CHOICE"
	DefaultQuestionPoints  = 10
)

// QuizQuestion carries the correct answer as the text of the chosen option.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Type          string   `json:"type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
	Points        int      `json:"points"`
}

type QuizInput struct {
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Questions    []QuizQuestion `json:"questions"`
	TotalPoints  int            `json:"totalPoints"`
	Audience     model.Audience `json:"audience"`
	DayID        string         `json:"dayId,omitempty"`
	PublishDate  string         `json:"publishDate,omitempty"`
	DevotionalID string         `json:"devotionalId,omitempty"`
}

func (in QuizInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.InvalidInput("title is required")
	}
	if len(in.Questions) == 0 {
		return errors.InvalidInput("at least one question is required")
	}
	for i, q := range in.Questions {
		if len(q.Options) < 2 {
			return errors.InvalidInput("question %d needs at least two options", i+1)
		}
		if !containsOption(q.Options, q.CorrectAnswer) {
			return errors.InvalidInput("question %d has no valid correct answer", i+1)
		}
	}
	return nil
}

func containsOption(options []string, answer string) bool {
	if answer == "" {
		return false
	}
	for _, o := range options {
		if o == answer {
			return true
		}
	}
	return false
}

// requireFields lists every empty field in alphabetical order.
func requireFields(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errors.InvalidInput("%s is required", strings.Join(missing, ", "))
}

// APIError is a non-2xx answer from the content service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("content API returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("content API returned HTTP %d: %s", e.StatusCode, e.Message)
}

func (e APIError) Is(target error) bool {
	return target == errors.ErrExternalAPIError
}
