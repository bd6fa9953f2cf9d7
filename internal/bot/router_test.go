package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/franckalain/caloriecounter/internal/logstore"
	"github.com/franckalain/caloriecounter/internal/ml"
	"github.com/franckalain/caloriecounter/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAnalyzer struct {
	rec      *models.NutritionRecord
	err      error
	payloads []models.Payload
	panicMsg string
}

func (m *mockAnalyzer) Analyze(_ context.Context, p models.Payload) (*models.NutritionRecord, error) {
	m.payloads = append(m.payloads, p)
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	return m.rec, m.err
}

type mockInterpreter struct {
	rng   models.DateRange
	err   error
	texts []string
}

func (m *mockInterpreter) ParseQuery(_ context.Context, text string, _ time.Time) (models.DateRange, error) {
	m.texts = append(m.texts, text)
	return m.rng, m.err
}

type mockStore struct {
	appended  []*models.NutritionRecord
	appendErr error
	rows      []models.LoggedRow
	readErr   error
	reads     int
}

func (m *mockStore) Append(_ context.Context, rec *models.NutritionRecord) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, rec)
	return nil
}

func (m *mockStore) ReadRange(_ context.Context, _, _ time.Time) ([]models.LoggedRow, error) {
	m.reads++
	return m.rows, m.readErr
}

type recorder struct {
	replies []string
}

func (r *recorder) Reply(_ context.Context, text string) error {
	r.replies = append(r.replies, text)
	return nil
}

func (r *recorder) last() string {
	if len(r.replies) == 0 {
		return ""
	}
	return r.replies[len(r.replies)-1]
}

func ptr[T any](v T) *T { return &v }

func newTestRouter(a analyzer, i interpreter, s logStore) *Router {
	return NewRouter(a, i, s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func apple() *models.NutritionRecord {
	return &models.NutritionRecord{FoodItem: ptr("Apple"), Calories: ptr(95), Protein: ptr(0), Carbs: ptr(25), Fat: ptr(0)}
}

func TestIsQuery(t *testing.T) {
	tests := []struct {
		text     string
		expected bool
	}{
		{"how many calories today", true},
		{"What did I eat yesterday?", true},
		{"SHOW me this week", true},
		{"give me a summary", true},
		{"list everything", true},
		{"breakdown for january", true},
		{"Summary please", true},
		{"  how about this month", true},
		{"however, I ate a burger", true},
		{"an apple", false},
		{"two eggs and toast, how nice", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsQuery(tt.text))
		})
	}
}

func TestLogTextEndToEnd(t *testing.T) {
	a := &mockAnalyzer{rec: apple()}
	s := &mockStore{}
	out := &recorder{}

	newTestRouter(a, &mockInterpreter{}, s).HandleText(context.Background(), "an apple", out)

	require.Len(t, a.payloads, 1)
	assert.Equal(t, models.Payload{Kind: models.KindText, Text: "an apple"}, a.payloads[0])
	require.Len(t, s.appended, 1)
	assert.Equal(t, apple(), s.appended[0])

	require.Len(t, out.replies, 2)
	assert.Equal(t, MsgAnalyzing, out.replies[0])
	assert.Contains(t, out.last(), "Apple")
	assert.Contains(t, out.last(), "95")
}

func TestLogNeverAppendsUnidentified(t *testing.T) {
	tests := []struct {
		name string
		a    *mockAnalyzer
	}{
		{name: "all null", a: &mockAnalyzer{rec: &models.NutritionRecord{}}},
		{name: "no food item", a: &mockAnalyzer{rec: &models.NutritionRecord{Calories: ptr(100)}}},
		{name: "blank food item", a: &mockAnalyzer{rec: &models.NutritionRecord{FoodItem: ptr("  ")}}},
		{name: "malformed reply", a: &mockAnalyzer{err: fmt.Errorf("%w: bad json", ml.ErrAnalysis)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &mockStore{}
			out := &recorder{}
			newTestRouter(tt.a, &mockInterpreter{}, s).HandleText(context.Background(), "a rock", out)

			assert.Empty(t, s.appended)
			assert.Equal(t, MsgNotIdentified, out.last())
		})
	}
}

func TestLogStoreFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "unreachable", err: fmt.Errorf("%w: timeout", logstore.ErrUnreachable), expected: MsgStoreUnreachable},
		{name: "not found", err: fmt.Errorf("%w: 404", logstore.ErrNotFound), expected: MsgStoreNotFound},
		{name: "header", err: fmt.Errorf("%w: got [Date Food]", logstore.ErrHeaderMismatch), expected: MsgHeaderMismatch},
		{name: "other", err: errors.New("disk full"), expected: "Please check server logs."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &recorder{}
			newTestRouter(&mockAnalyzer{rec: apple()}, &mockInterpreter{}, &mockStore{appendErr: tt.err}).
				HandleText(context.Background(), "an apple", out)

			assert.True(t, strings.HasPrefix(out.last(), MsgNotSaved))
			assert.Contains(t, out.last(), tt.expected)
		})
	}
}

func TestQueryEndToEnd(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	i := &mockInterpreter{rng: models.DateRange{Start: day, End: day}}
	s := &mockStore{rows: []models.LoggedRow{
		{LoggedAt: day.Add(8 * time.Hour), FoodItem: "Oatmeal", Calories: "150", Protein: "5", Carbs: "27", Fat: "3"},
		{LoggedAt: day.Add(13 * time.Hour), FoodItem: "Apple", Calories: "95", Protein: "0", Carbs: "25", Fat: "0"},
	}}
	a := &mockAnalyzer{}
	out := &recorder{}

	newTestRouter(a, i, s).HandleText(context.Background(), "how many calories today", out)

	assert.Empty(t, a.payloads)
	assert.Equal(t, []string{"how many calories today"}, i.texts)
	require.Len(t, out.replies, 2)
	assert.Equal(t, MsgCheckingLog, out.replies[0])

	reply := out.last()
	assert.Contains(t, reply, "for *2024-01-01*")
	assert.Contains(t, reply, "*Calories:* 245 kcal")
	assert.Contains(t, reply, "*Protein:* 5g")
	assert.Contains(t, reply, "*Carbs:* 52g")
	assert.Contains(t, reply, "*Fat:* 3g")
	assert.Contains(t, reply, "\n- Oatmeal\n- Apple")
}

func TestQueryFailures(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	week := models.DateRange{Start: day, End: day.AddDate(0, 0, 6)}

	tests := []struct {
		name     string
		i        *mockInterpreter
		s        *mockStore
		expected string
		reads    int
	}{
		{name: "unparseable range", i: &mockInterpreter{err: ml.ErrParse}, s: &mockStore{}, expected: MsgRangeUnparseable, reads: 0},
		{name: "no entries", i: &mockInterpreter{rng: week}, s: &mockStore{}, expected: "No entries found from *2024-01-01* to *2024-01-07*.", reads: 1},
		{name: "header mismatch", i: &mockInterpreter{rng: week}, s: &mockStore{readErr: logstore.ErrHeaderMismatch}, expected: MsgHeaderMismatch, reads: 1},
		{name: "not found", i: &mockInterpreter{rng: week}, s: &mockStore{readErr: logstore.ErrNotFound}, expected: MsgStoreNotFound, reads: 1},
		{name: "unreachable", i: &mockInterpreter{rng: week}, s: &mockStore{readErr: logstore.ErrUnreachable}, expected: MsgStoreUnreachable, reads: 1},
		{name: "other read error", i: &mockInterpreter{rng: week}, s: &mockStore{readErr: errors.New("boom")}, expected: MsgReadFailed, reads: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &recorder{}
			newTestRouter(&mockAnalyzer{}, tt.i, tt.s).HandleText(context.Background(), "show me this week", out)

			assert.Equal(t, tt.expected, out.last())
			assert.Equal(t, tt.reads, tt.s.reads)
		})
	}
}

func TestHandleMedia(t *testing.T) {
	a := &mockAnalyzer{rec: apple()}
	s := &mockStore{}
	out := &recorder{}
	released := false

	src := func(_ context.Context, use func(models.Payload) error) error {
		defer func() { released = true }()
		return use(models.Payload{Kind: models.KindAudio, Path: "/tmp/voice.ogg"})
	}
	newTestRouter(a, &mockInterpreter{}, s).HandleMedia(context.Background(), src, out)

	assert.True(t, released)
	require.Len(t, a.payloads, 1)
	assert.Equal(t, models.KindAudio, a.payloads[0].Kind)
	assert.Len(t, s.appended, 1)
	assert.Equal(t, MsgAnalyzing, out.replies[0])
	assert.Contains(t, out.last(), "Apple")
}

func TestHandleMediaDownloadFailure(t *testing.T) {
	a := &mockAnalyzer{rec: apple()}
	out := &recorder{}

	src := func(context.Context, func(models.Payload) error) error {
		return errors.New("file too big")
	}
	newTestRouter(a, &mockInterpreter{}, &mockStore{}).HandleMedia(context.Background(), src, out)

	assert.Empty(t, a.payloads)
	assert.Equal(t, MsgMediaUnavailable, out.last())
}

func TestUnexpectedPanicStillReplies(t *testing.T) {
	out := &recorder{}
	s := &mockStore{}

	assert.NotPanics(t, func() {
		newTestRouter(&mockAnalyzer{panicMsg: "nil map"}, &mockInterpreter{}, s).
			HandleText(context.Background(), "an apple", out)
	})

	require.Len(t, out.replies, 2)
	assert.Equal(t, MsgUnexpected, out.last())
	assert.Empty(t, s.appended)
}
