package commit

import (
	"context"
	"fmt"
	"strings"

	"planted-staging/internal/content"
	"planted-staging/internal/excel"
	"planted-staging/internal/logger"
	"planted-staging/internal/model"
	"planted-staging/internal/worker"
	"planted-staging/pkg/errors"

	"github.com/rs/zerolog"
)

// Engine pushes approved items into the content store.
type Engine struct {
	store     content.Store
	pool      *worker.WorkerPool
	validator *excel.Validator
	log       zerolog.Logger
}

func NewEngine(store content.Store, pool *worker.WorkerPool) *Engine {
	return &Engine{
		store:     store,
		pool:      pool,
		validator: excel.NewValidator(),
		log:       logger.Component("commit"),
	}
}

// Commit creates content for every item and never fails as a whole: each
// failed item contributes one entry to Errors, in the order items were given.
// Devotionals are created first so quizzes in the same batch can link to them.
func (e *Engine) Commit(ctx context.Context, items []model.CommitItem) model.CommitResult {
	result := model.CommitResult{ApprovedCount: len(items), Errors: []string{}}
	if len(items) == 0 {
		return result
	}

	errs := make([]error, len(items))
	devotionalIDs := make([]string, len(items))

	var devotionals, rest []int
	for i, it := range items {
		if it.Sheet.Kind() == model.KindDevotional {
			devotionals = append(devotionals, i)
		} else {
			rest = append(rest, i)
		}
	}

	jobs := make([]worker.Job, len(devotionals))
	for j, i := range devotionals {
		i := i
		jobs[j] = func(ctx context.Context) error {
			id, err := e.createDevotional(ctx, items[i])
			devotionalIDs[i] = id
			return err
		}
	}
	for j, err := range e.pool.Run(ctx, jobs) {
		errs[devotionals[j]] = err
	}

	links := newDevotionalIndex(items, devotionals, devotionalIDs)

	jobs = make([]worker.Job, len(rest))
	for j, i := range rest {
		it := items[i]
		jobs[j] = func(ctx context.Context) error {
			return e.createItem(ctx, it, links)
		}
	}
	for j, err := range e.pool.Run(ctx, jobs) {
		errs[rest[j]] = err
	}

	for i, err := range errs {
		if err == nil {
			result.CommittedCount++
			continue
		}
		it := items[i]
		result.Errors = append(result.Errors, errors.CommitError{
			Sheet: string(it.Sheet),
			Index: it.Item.Index,
			Label: it.Item.Label(it.Sheet.Kind()),
			Err:   err,
		}.Error())
	}

	e.log.Info().
		Int("approved", result.ApprovedCount).
		Int("committed", result.CommittedCount).
		Int("failed", len(result.Errors)).
		Msg("Commit batch finished")

	return result
}

func (e *Engine) createItem(ctx context.Context, it model.CommitItem, links *devotionalIndex) error {
	switch it.Sheet.Kind() {
	case model.KindMemoryVerse:
		return e.createMemoryVerses(ctx, it.Item)
	case model.KindKeyLesson:
		return e.createKeyLessons(ctx, it.Item)
	case model.KindQuiz:
		return e.createQuiz(ctx, it, links.resolve(it.Item))
	}
	return fmt.Errorf("unsupported sheet %s", it.Sheet)
}

func (e *Engine) createDevotional(ctx context.Context, it model.CommitItem) (string, error) {
	item := it.Item
	audience := model.AudienceSproutExplorer
	if it.Sheet == model.SheetAdultDevotionals {
		audience = model.AudienceParent
	}
	return e.store.CreateDevotional(ctx, content.DevotionalInput{
		Title:               item.String(model.FieldTitle),
		Subtitle:            item.String(model.FieldSubtitle),
		BibleReference:      item.String(model.FieldBibleReference),
		VerseText:           item.String(model.FieldVerseText),
		Content:             item.String(model.FieldContent),
		FaithSpeaks:         item.String(model.FieldFaithSpeaks),
		WordChallenge:       item.String(model.FieldWordChallenge),
		PrayerPrompt:        item.String(model.FieldPrayerPrompt),
		ReflectionQuestions: item.Strings(model.FieldReflections),
		Tags:                item.Strings(model.FieldTags),
		Audience:            audience,
		DayID:               item.DayID,
		PublishDate:         item.Date,
	})
}

// bandsOf returns the bands a row carries content for. A row with none is
// still sent once so the store reports what is missing.
func bandsOf(item model.StagedItem, kind model.SheetKind) []model.AgeBand {
	if bands := item.Bands(kind); len(bands) > 0 {
		return bands
	}
	return []model.AgeBand{model.Band5to8}
}

// perBand runs create once per band. When a later band fails, the error
// names the bands that already have a record so a retry can be reconciled.
func perBand(bands []model.AgeBand, create func(model.AgeBand) (string, error)) error {
	var created []string
	for _, band := range bands {
		id, err := create(band)
		if err != nil {
			if len(created) > 0 {
				return fmt.Errorf("%s: %w (already created: %s)", band.Audience(), err, strings.Join(created, ", "))
			}
			return fmt.Errorf("%s: %w", band.Audience(), err)
		}
		created = append(created, fmt.Sprintf("%s as %s", band.Audience(), id))
	}
	return nil
}

func (e *Engine) createMemoryVerses(ctx context.Context, item model.StagedItem) error {
	reference := item.String(model.FieldReference)
	ref, _ := e.validator.ParseReference(reference)

	return perBand(bandsOf(item, model.KindMemoryVerse), func(band model.AgeBand) (string, error) {
		return e.store.CreateMemoryVerse(ctx, content.MemoryVerseInput{
			Reference:   reference,
			Book:        ref.Book,
			Chapter:     ref.Chapter,
			VerseStart:  ref.VerseStart,
			VerseEnd:    ref.VerseEnd,
			VerseText:   item.String(model.VerseTextField(band)),
			Topic:       item.String(model.FieldTopic),
			Hints:       item.Strings(model.FieldHints),
			Audience:    band.Audience(),
			DayID:       item.DayID,
			PublishDate: item.Date,
		})
	})
}

func lessonsOf(texts []string) []content.Lesson {
	lessons := make([]content.Lesson, 0, len(texts))
	for _, text := range texts {
		lessons = append(lessons, content.Lesson{Order: len(lessons) + 1, Text: text})
	}
	return lessons
}

func (e *Engine) createKeyLessons(ctx context.Context, item model.StagedItem) error {
	return perBand(bandsOf(item, model.KindKeyLesson), func(band model.AgeBand) (string, error) {
		return e.store.CreateKeyLesson(ctx, content.KeyLessonInput{
			Lessons:      lessonsOf(item.Strings(model.LessonsField(band))),
			BibleReading: item.String(model.FieldBibleReading),
			Audience:     band.Audience(),
			DayID:        item.DayID,
			PublishDate:  item.Date,
		})
	})
}

// questionsOf converts staged questions, whose answer is an option index,
// into the content API form where the answer is the option text.
func questionsOf(staged []model.Question) ([]content.QuizQuestion, int) {
	questions := make([]content.QuizQuestion, 0, len(staged))
	total := 0
	for _, q := range staged {
		answer := ""
		if q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options) {
			answer = q.Options[q.CorrectAnswer]
		}
		questions = append(questions, content.QuizQuestion{
			Question:      q.Question,
			Type:          content.QuestionMultipleChoice,
			Options:       q.Options,
			CorrectAnswer: answer,
			Explanation:   q.Explanation,
			Points:        content.DefaultQuestionPoints,
		})
		total += content.DefaultQuestionPoints
	}
	return questions, total
}

func (e *Engine) createQuiz(ctx context.Context, it model.CommitItem, devotionalID string) error {
	band := model.Band5to8
	if it.Sheet == model.SheetQuizzes9to12 {
		band = model.Band9to12
	}
	item := it.Item
	questions, total := questionsOf(item.Questions())
	_, err := e.store.CreateQuiz(ctx, content.QuizInput{
		Title:       item.String(model.FieldTitle),
		Description: item.String(model.FieldDescription),
		Questions:   questions,
		TotalPoints: total,
		Audience:    band.Audience(),
		DayID:       item.DayID,
		PublishDate: item.Date,
	}, devotionalID)
	return err
}

// devotionalIndex holds the ids of devotionals created in this batch.
type devotionalIndex struct {
	byTitle map[string]string
	byDay   map[string]string
}

func newDevotionalIndex(items []model.CommitItem, devotionals []int, ids []string) *devotionalIndex {
	idx := &devotionalIndex{byTitle: map[string]string{}, byDay: map[string]string{}}
	for _, i := range devotionals {
		id := ids[i]
		if id == "" {
			continue
		}
		it := items[i]
		if title := titleKey(it.Item.String(model.FieldTitle)); title != "" {
			if _, taken := idx.byTitle[title]; !taken || it.Sheet == model.SheetChildrenDevotionals {
				idx.byTitle[title] = id
			}
		}
		if it.Sheet == model.SheetChildrenDevotionals && it.Item.DayID != "" {
			if _, taken := idx.byDay[it.Item.DayID]; !taken {
				idx.byDay[it.Item.DayID] = id
			}
		}
	}
	return idx
}

// resolve picks the devotional a quiz links to: the one named in its
// devotional column, else the children devotional of the same day. An
// empty result means the quiz is created unlinked.
func (d *devotionalIndex) resolve(quiz model.StagedItem) string {
	if title := titleKey(quiz.String(model.FieldDevotional)); title != "" {
		return d.byTitle[title]
	}
	return d.byDay[quiz.DayID]
}

func titleKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
