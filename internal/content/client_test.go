package content

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"planted-staging/internal/config"
	"planted-staging/internal/model"
	"planted-staging/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.ContentAPIConfig {
	return config.ContentAPIConfig{
		BaseURL:              baseURL,
		AuthEndpoint:         "/auth/login",
		DevotionalsEndpoint:  "/devotionals",
		MemoryVersesEndpoint: "/memory-verses",
		KeyLessonsEndpoint:   "/key-lessons",
		QuizzesEndpoint:      "/quizzes",
		Email:                "admin@example.com",
		Password:             "secret",
		TokenExpires:         time.Hour,
		Timeout:              5 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func loginHandler(logins *int32, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(logins, 1)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"tokens": map[string]interface{}{"accessToken": token, "expiresIn": 3600},
			},
		})
	}
}

func TestClientCreatesAndCachesToken(t *testing.T) {
	var logins int32
	var quizBody []byte

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(&logins, "tok-1"))
	mux.HandleFunc("/devotionals", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"status": "success",
			"data":   map[string]interface{}{"devotional": map[string]interface{}{"_id": "dev-1"}},
		})
	})
	mux.HandleFunc("/quizzes", func(w http.ResponseWriter, r *http.Request) {
		quizBody, _ = io.ReadAll(r.Body)
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"status": "success",
			"data":   map[string]interface{}{"id": "quiz-1"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	ctx := context.Background()

	devID, err := client.CreateDevotional(ctx, DevotionalInput{
		Title: "Light", BibleReference: "John 1:5", VerseText: "The light shines", Content: "Body",
		Audience: model.AudienceParent,
	})
	require.NoError(t, err)
	assert.Equal(t, "dev-1", devID)

	quizID, err := client.CreateQuiz(ctx, QuizInput{
		Title: "Quiz",
		Questions: []QuizQuestion{{
			Question: "Q", Type: QuestionMultipleChoice, Options: []string{"a", "b"}, CorrectAnswer: "b", Points: 10,
		}},
		TotalPoints: 10,
		Audience:    model.AudienceSproutExplorer,
		DayID:       "20260118",
	}, devID)
	require.NoError(t, err)
	assert.Equal(t, "quiz-1", quizID)
	assert.JSONEq(t, `{
		"title": "Quiz",
		"questions": [{"question": "Q", "type": "MULTIPLE_CHOICE", "options": ["a", "b"], "correctAnswer": "b", "points": 10}],
		"totalPoints": 10,
		"audience": "SPROUT_EXPLORER",
		"dayId": "20260118",
		"devotionalId": "dev-1"
	}`, string(quizBody))

	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))
}

func TestClientRefreshesTokenOnUnauthorized(t *testing.T) {
	var logins, calls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(&logins, "tok"))
	mux.HandleFunc("/key-lessons", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"status": "error", "message": "jwt expired"})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"status": "success",
			"data":   map[string]interface{}{"keyLesson": map[string]interface{}{"id": "kl-1"}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	id, err := client.CreateKeyLesson(context.Background(), KeyLessonInput{Lessons: []Lesson{{Order: 1, Text: "Be kind"}}})
	require.NoError(t, err)
	assert.Equal(t, "kl-1", id)
	assert.Equal(t, int32(2), atomic.LoadInt32(&logins))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientSurfacesAPIMessage(t *testing.T) {
	var logins int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(&logins, "tok"))
	mux.HandleFunc("/memory-verses", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"status": "error", "message": "verseText too long"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.CreateMemoryVerse(context.Background(), MemoryVerseInput{Reference: "John 3:16", VerseText: "For God"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrExternalAPIError)
	assert.Contains(t, err.Error(), "verseText too long")
	assert.Contains(t, err.Error(), "400")
}

func TestClientPostsContentShapes(t *testing.T) {
	var logins int32
	bodies := map[string][]byte{}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(&logins, "tok"))
	capture := func(w http.ResponseWriter, r *http.Request) {
		bodies[r.URL.Path], _ = io.ReadAll(r.Body)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"status": "success", "data": map[string]interface{}{"id": "x"}})
	}
	mux.HandleFunc("/memory-verses", capture)
	mux.HandleFunc("/key-lessons", capture)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	ctx := context.Background()

	_, err := client.CreateMemoryVerse(ctx, MemoryVerseInput{
		Reference: "John 3:16", Book: "John", Chapter: 3, VerseStart: 16,
		VerseText: "For God so loved", Audience: model.AudienceTrailblazerTeen,
	})
	require.NoError(t, err)
	_, err = client.CreateKeyLesson(ctx, KeyLessonInput{
		Lessons:  []Lesson{{Order: 1, Text: "Be kind"}, {Order: 2, Text: "Forgive"}},
		Audience: model.AudienceSproutExplorer,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"reference": "John 3:16", "book": "John", "chapter": 3, "verseStart": 16,
		"verseText": "For God so loved", "audience": "TRAILBLAZER_TEEN"
	}`, string(bodies["/memory-verses"]))
	assert.JSONEq(t, `{
		"lessons": [{"order": 1, "text": "Be kind"}, {"order": 2, "text": "Forgive"}],
		"audience": "SPROUT_EXPLORER"
	}`, string(bodies["/key-lessons"]))
}

func TestClientLoginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"status": "error", "message": "bad credentials"})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.CreateKeyLesson(context.Background(), KeyLessonInput{Lessons: []Lesson{{Order: 1, Text: "x"}}})
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"flat id", `{"id":"a"}`, "a"},
		{"mongo id", `{"_id":"b"}`, "b"},
		{"nested data", `{"data":{"id":"c"}}`, "c"},
		{"nested kind", `{"memoryVerse":{"_id":"d"}}`, "d"},
		{"numeric", `{"id":42}`, "42"},
		{"missing", `{"name":"x"}`, ""},
		{"not an object", `"x"`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractID(json.RawMessage(tt.raw)))
		})
	}
}

func TestMemoryStoreValidates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.CreateDevotional(ctx, DevotionalInput{Title: "T"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "bibleReference, content, verseText is required")

	id, err := store.CreateQuiz(ctx, QuizInput{
		Title:     "Q",
		Questions: []QuizQuestion{{Question: "?", Options: []string{"a", "b"}, CorrectAnswer: "a"}},
	}, "dev-9")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = store.CreateQuiz(ctx, QuizInput{
		Title:     "Q",
		Questions: []QuizQuestion{{Question: "?", Options: []string{"a", "b"}, CorrectAnswer: "c"}},
	}, "")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = store.CreateKeyLesson(ctx, KeyLessonInput{Lessons: []Lesson{{Order: 1, Text: " "}}})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	records := store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "quiz", records[0].Kind)
	assert.Equal(t, "dev-9", records[0].Payload.(QuizInput).DevotionalID)
}
