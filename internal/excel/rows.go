package excel

import (
	"strconv"
	"strings"

	"planted-staging/internal/model"
)

const (
	maxHints       = 5
	maxLessons     = 5
	maxQuestions   = 10
	maxReflections = 5
)

var optionLetters = []string{"a", "b", "c", "d"}

// row is one data row keyed by normalized header.
type row map[string]string

func (r row) get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}

func (r row) empty() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// numbered collects prefix1..prefixN(+suffix) columns, dropping blanks.
func (r row) numbered(prefix, suffix string, n int) []string {
	var out []string
	for i := 1; i <= n; i++ {
		if v := r.get(prefix + strconv.Itoa(i) + suffix); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "/", "", "-", "").Replace(h)
}

// SplitList splits a comma separated cell, dropping empty entries.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(data map[string]interface{}, key, value string) {
	if value != "" {
		data[key] = value
	}
}

func setList(data map[string]interface{}, key string, values []string) {
	if len(values) > 0 {
		data[key] = values
	}
}

func rowBand(r row) (model.AgeBand, bool) {
	return model.ParseAgeBand(strings.ReplaceAll(r.get("agegroup", "agerange", "band"), " ", ""))
}

func memoryVerseData(r row) map[string]interface{} {
	data := map[string]interface{}{}
	setString(data, model.FieldReference, r.get("reference", "versereference"))
	setString(data, model.FieldTopic, r.get("topic", "theme"))
	setList(data, model.FieldHints, r.numbered("hint", "", maxHints))

	for _, b := range model.AgeBands {
		setString(data, model.VerseTextField(b), r.get("versetext_"+string(b)))
	}
	if band, ok := rowBand(r); ok {
		setString(data, model.VerseTextField(band), r.get("versetext", "verse"))
	}
	return data
}

func keyLessonData(r row) map[string]interface{} {
	data := map[string]interface{}{}
	for _, b := range model.AgeBands {
		setList(data, model.LessonsField(b), r.numbered("lesson", "_"+string(b), maxLessons))
	}
	if band, ok := rowBand(r); ok {
		setList(data, model.LessonsField(band), r.numbered("lesson", "", maxLessons))
	}
	return data
}

func quizData(r row) map[string]interface{} {
	data := map[string]interface{}{}
	setString(data, model.FieldTitle, r.get("title", "quiztitle"))
	setString(data, model.FieldDescription, r.get("description"))
	setString(data, model.FieldDevotional, r.get("devotional", "devotionaltitle"))

	var questions []model.Question
	for n := 1; n <= maxQuestions; n++ {
		prefix := "q" + strconv.Itoa(n)
		text := r.get(prefix, prefix+"question")
		if text == "" {
			continue
		}

		var options []string
		letterIndex := map[string]int{}
		for _, letter := range optionLetters {
			if opt := r.get(prefix + letter); opt != "" {
				letterIndex[letter] = len(options)
				options = append(options, opt)
			}
		}

		questions = append(questions, model.Question{
			Question:      text,
			Options:       options,
			CorrectAnswer: resolveAnswer(r.get(prefix+"answer", prefix+"correct"), options, letterIndex),
			Explanation:   r.get(prefix + "explanation"),
		})
	}
	if len(questions) > 0 {
		data[model.FieldQuestions] = questions
	}
	return data
}

// resolveAnswer accepts an option letter, a 1-based number or the option text.
// It returns -1 when nothing matches.
func resolveAnswer(answer string, options []string, letterIndex map[string]int) int {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return -1
	}
	if idx, ok := letterIndex[strings.ToLower(answer)]; ok {
		return idx
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
		return n - 1
	}
	for i, opt := range options {
		if strings.EqualFold(opt, answer) {
			return i
		}
	}
	return -1
}

func devotionalData(r row) map[string]interface{} {
	data := map[string]interface{}{}
	setString(data, model.FieldTitle, r.get("title"))
	setString(data, model.FieldSubtitle, r.get("subtitle"))
	// Sheets that only carry the day's BibleReading use it as the reference.
	setString(data, model.FieldBibleReference, r.get("biblereference", "reference", "scripture", "biblereading"))
	setString(data, model.FieldVerseText, r.get("versetext", "verse", "keyverse"))
	setString(data, model.FieldContent, r.get("bodystory", "content", "body", "story"))
	setString(data, model.FieldFaithSpeaks, r.get("faithspeaks"))
	setString(data, model.FieldWordChallenge, r.get("wordchallenge"))
	setString(data, model.FieldPrayerPrompt, r.get("prayerprompt", "prayer"))
	setList(data, model.FieldReflections, r.numbered("reflectionquestion", "", maxReflections))
	setList(data, model.FieldTags, SplitList(r.get("tags")))
	return data
}
