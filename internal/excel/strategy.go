package excel

import (
	"context"

	"planted-staging/internal/model"
)

// ParsingStrategy is what the staging service needs from a workbook reader.
type ParsingStrategy interface {
	Parse(ctx context.Context, data []byte) (*ParseResult, error)
	// Revalidate recomputes an item's validation errors after an edit.
	Revalidate(sheet model.SheetKey, item model.StagedItem) []string
}

type ExcelStrategy struct {
	parser    *Parser
	validator *Validator
}

func NewExcelStrategy() ParsingStrategy {
	validator := NewValidator()
	return &ExcelStrategy{
		parser:    NewParser(validator),
		validator: validator,
	}
}

func (s *ExcelStrategy) Parse(ctx context.Context, data []byte) (*ParseResult, error) {
	return s.parser.Parse(ctx, data)
}

func (s *ExcelStrategy) Revalidate(sheet model.SheetKey, item model.StagedItem) []string {
	out := []string{}
	for _, err := range s.validator.ValidateItem(sheet, item) {
		out = append(out, err.Error())
	}
	return out
}
