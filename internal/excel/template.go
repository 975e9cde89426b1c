package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// TemplateFileName is the download name of the blank upload workbook.
const TemplateFileName = "planted_bulk_upload_template.xlsx"

type templateSheet struct {
	name    string
	headers []string
	example []interface{}
}

var quizTemplate = templateSheet{
	headers: []string{
		"DayID", "Date", "BibleReading", "Title",
		"Q1", "Q1A", "Q1B", "Q1C", "Q1D", "Q1Answer",
		"Q2", "Q2A", "Q2B", "Q2C", "Q2D", "Q2Answer",
	},
	example: []interface{}{
		"20260118", "2026-01-18", "Matthew 1:1-25", "God's Promise Quiz",
		"Who was Jesus' earthly father?", "Joseph", "David", "Abraham", "Moses", "A",
		"What does Emmanuel mean?", "King of Kings", "God with us", "Prince of Peace", "Savior", "B",
	},
}

var devotionalTemplate = templateSheet{
	headers: []string{"DayID", "Date", "Title", "BibleReading", "Verse Text", "Body/Story", "FaithSpeaks", "WordChallenge"},
	example: []interface{}{
		"20260118", "2026-01-18", "God's Promise Fulfilled", "Matthew 1:1-25",
		"She will give birth to a son, and you are to give him the name Jesus.",
		"Long ago, God made a promise to send a Savior...",
		"I believe God keeps His promises.",
		"Share one promise of God with a friend.",
	},
}

func templateSheets() []templateSheet {
	q58, q912 := quizTemplate, quizTemplate
	q58.name, q912.name = "Q_5_8", "Q_9_12"
	children, adults := devotionalTemplate, devotionalTemplate
	children.name, adults.name = "Children Devotional", "Adult Devotional"

	return []templateSheet{
		{
			name:    "MemoryVerses",
			headers: []string{"DayID", "Date", "BibleReading", "Verse Text_5_8", "Verse Text_9_12", "Reference"},
			example: []interface{}{
				"20260118", "2026-01-18", "Matthew 1:1-25",
				"For God so loved the world...",
				"For God so loved the world that he gave...",
				"John 3:16",
			},
		},
		{
			name: "KeyLessons",
			headers: []string{
				"DayID", "Date", "BibleReading",
				"Lesson1_5_8", "Lesson2_5_8", "Lesson3_5_8",
				"Lesson1_9_12", "Lesson2_9_12", "Lesson3_9_12",
			},
			example: []interface{}{
				"20260118", "2026-01-18", "Matthew 1:1-25",
				"God keeps His promises", "Jesus is God's Son", "God has a plan for everyone",
				"God fulfills prophecy", "Jesus came to save us", "Trust in God's timing",
			},
		},
		q58,
		q912,
		children,
		adults,
	}
}

// BuildTemplate renders the six-sheet upload workbook with one example row
// per sheet. The result parses back into one valid item per sheet.
func BuildTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sheet := range templateSheets() {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet.name); err != nil {
			return nil, err
		}

		headers := make([]interface{}, len(sheet.headers))
		for j, h := range sheet.headers {
			headers[j] = h
		}
		if err := f.SetSheetRow(sheet.name, "A1", &headers); err != nil {
			return nil, err
		}
		example := sheet.example
		if err := f.SetSheetRow(sheet.name, "A2", &example); err != nil {
			return nil, err
		}

		last, err := excelize.ColumnNumberToName(len(sheet.headers))
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet.name, "A1", last+"1", header); err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet.name, "A", last, 20); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write template: %w", err)
	}
	return buf.Bytes(), nil
}
