package excel

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"planted-staging/internal/model"
	"planted-staging/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// ParseResult holds the staged rows of every recognized sheet.
type ParseResult struct {
	Sheets      map[model.SheetKey][]model.StagedItem
	ParseErrors []string
}

func (r *ParseResult) TotalItems() int {
	total := 0
	for _, items := range r.Sheets {
		total += len(items)
	}
	return total
}

type Parser struct {
	validator *Validator
}

func NewParser(validator *Validator) *Parser {
	return &Parser{validator: validator}
}

var sheetAliases = map[string]model.SheetKey{
	"memoryverses":        model.SheetMemoryVerses,
	"memoryverse":         model.SheetMemoryVerses,
	"keylessons":          model.SheetKeyLessons,
	"keylesson":           model.SheetKeyLessons,
	"q58":                 model.SheetQuizzes5to8,
	"quiz58":              model.SheetQuizzes5to8,
	"quizzes58":           model.SheetQuizzes5to8,
	"q912":                model.SheetQuizzes9to12,
	"quiz912":             model.SheetQuizzes9to12,
	"quizzes912":          model.SheetQuizzes9to12,
	"childrendevotional":  model.SheetChildrenDevotionals,
	"childrendevotionals": model.SheetChildrenDevotionals,
	"kidsdevotional":      model.SheetChildrenDevotionals,
	"kidsdevotionals":     model.SheetChildrenDevotionals,
	"adultdevotional":     model.SheetAdultDevotionals,
	"adultdevotionals":    model.SheetAdultDevotionals,
}

// RecognizeSheet maps a worksheet name onto a sheet key.
func RecognizeSheet(name string) (model.SheetKey, bool) {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	key, ok := sheetAliases[b.String()]
	return key, ok
}

func (p *Parser) Parse(ctx context.Context, data []byte) (*ParseResult, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewFatalParseError("workbook is unreadable", err)
	}
	defer file.Close()

	result := &ParseResult{Sheets: make(map[model.SheetKey][]model.StagedItem)}

	names := file.GetSheetList()
	assigned := make(map[model.SheetKey]string)
	var unrecognized []string
	for _, name := range names {
		key, ok := RecognizeSheet(name)
		if !ok {
			unrecognized = append(unrecognized, name)
			continue
		}
		if prev, dup := assigned[key]; dup {
			result.ParseErrors = append(result.ParseErrors,
				fmt.Sprintf("sheet %q duplicates %q, skipped", name, prev))
			continue
		}
		assigned[key] = name
	}

	// Unnamed workbooks that follow the template layout map by position.
	if len(assigned) == 0 && len(names) == len(model.SheetOrder) {
		for i, key := range model.SheetOrder {
			assigned[key] = names[i]
		}
		unrecognized = nil
	}

	if len(assigned) == 0 {
		return nil, errors.NewFatalParseError("no recognized sheets", errors.ErrNoRecognizedSheets)
	}
	for _, name := range unrecognized {
		result.ParseErrors = append(result.ParseErrors, fmt.Sprintf("sheet %q not recognized, skipped", name))
	}

	for _, key := range model.SheetOrder {
		name, ok := assigned[key]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := file.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			result.ParseErrors = append(result.ParseErrors, fmt.Sprintf("sheet %q could not be read: %v", name, err))
			continue
		}

		items, errs := p.parseSheet(key, name, rows)
		result.Sheets[key] = items
		result.ParseErrors = append(result.ParseErrors, errs...)
	}

	return result, nil
}

func (p *Parser) parseSheet(key model.SheetKey, name string, rows [][]string) ([]model.StagedItem, []string) {
	items := []model.StagedItem{}
	if len(rows) < 2 { // Header + at least one data row
		return items, nil
	}

	header := make([]string, len(rows[0]))
	for i, col := range rows[0] {
		header[i] = normalizeHeader(col)
	}

	var parseErrors []string
	for i, cells := range rows[1:] {
		r := make(row, len(header))
		for col, h := range header {
			if h == "" || col >= len(cells) {
				continue
			}
			if _, exists := r[h]; !exists {
				r[h] = cells[col]
			}
		}
		if r.empty() {
			continue
		}

		item := p.parseRow(key, r)
		item.Index = len(items)
		items = append(items, item)

		for _, msg := range item.ValidationErrors {
			parseErrors = append(parseErrors, fmt.Sprintf("%s row %d: %s", name, i+2, msg))
		}
	}
	return items, parseErrors
}

func (p *Parser) parseRow(key model.SheetKey, r row) model.StagedItem {
	var data map[string]interface{}
	switch key.Kind() {
	case model.KindMemoryVerse:
		data = memoryVerseData(r)
	case model.KindKeyLesson:
		data = keyLessonData(r)
	case model.KindQuiz:
		data = quizData(r)
	default:
		data = devotionalData(r)
	}
	setString(data, model.FieldBibleReading, r.get("biblereading"))

	item := model.StagedItem{
		DayID:  r.get("dayid", "day"),
		Status: model.ItemPending,
		Data:   data,
	}

	var messages []string
	if raw := r.get("date", "publishdate"); raw != "" {
		date, err := NormalizeDate(raw)
		if err != nil {
			messages = append(messages, errors.ValidationError{Field: "date", Value: raw, Message: err.Error()}.Error())
		} else {
			item.Date = date
		}
	}
	if item.DayID == "" && item.Date != "" {
		item.DayID = DayIDFromDate(item.Date)
	}

	for _, verr := range p.validator.ValidateItem(key, item) {
		messages = append(messages, verr.Error())
	}
	item.ValidationErrors = messages
	if item.ValidationErrors == nil {
		item.ValidationErrors = []string{}
	}
	return item
}
