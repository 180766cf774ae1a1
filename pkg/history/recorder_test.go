package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mimir-aip/cropwise/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySaver struct {
	mu      sync.Mutex
	entries []*models.HistoryEntry
	err     error
	block   chan struct{}
}

func (m *memorySaver) Save(ctx context.Context, e *models.HistoryEntry) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memorySaver) saved() []*models.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.HistoryEntry(nil), m.entries...)
}

func TestRecorderWritesInBackground(t *testing.T) {
	saver := &memorySaver{}
	r := NewRecorder(saver, 8)

	r.Record("u1", models.HistoryNoise, map[string]float64{"N": 90}, map[string]float64{"rss": 0.9})
	r.Record("", models.HistoryNoise, nil, nil)
	require.NoError(t, r.Close(context.Background()))

	saved := saver.saved()
	require.Len(t, saved, 1)
	e := saved[0]
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, models.HistoryNoise, e.Kind)
	assert.NotEmpty(t, e.ID)
	assert.JSONEq(t, `{"N":90}`, string(e.Input))
	assert.JSONEq(t, `{"rss":0.9}`, string(e.Result))
}

func TestRecorderDropsWhenFull(t *testing.T) {
	saver := &memorySaver{block: make(chan struct{})}
	r := NewRecorder(saver, 1)

	start := time.Now()
	for i := 0; i < 10; i++ {
		r.Record("u1", models.HistoryFull, i, i)
	}
	assert.Less(t, time.Since(start), time.Second, "Record must not block")

	close(saver.block)
	require.NoError(t, r.Close(context.Background()))
	n := len(saver.saved())
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 2)
}

func TestRecorderSwallowsFailures(t *testing.T) {
	saver := &memorySaver{err: errors.New("disk full")}
	r := NewRecorder(saver, 4)
	r.Record("u1", models.HistoryPrediction, "in", "out")
	r.Record("u1", models.HistoryPrediction, json.RawMessage(`{`), "out")
	require.NoError(t, r.Close(context.Background()))
	assert.Empty(t, saver.saved())
}

func TestRecorderCloseHonoursContext(t *testing.T) {
	saver := &memorySaver{block: make(chan struct{})}
	r := NewRecorder(saver, 4)
	r.Record("u1", models.HistoryPrediction, "in", "out")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Close(ctx), context.DeadlineExceeded)

	// recording after close is a no-op
	r.Record("u1", models.HistoryPrediction, "in", "out")
	close(saver.block)
	require.NoError(t, r.Close(context.Background()))
}

func TestRecorderWithStore(t *testing.T) {
	s := newTestStore(t)
	r := NewRecorder(s, 4)
	r.Record("u1", models.HistoryAgreement, map[string]any{"location": "Pune"}, map[string]any{"all_agree": true})
	require.NoError(t, r.Close(context.Background()))

	got, err := s.ListByUser(context.Background(), "u1", models.HistoryAgreement, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"all_agree":true}`, string(got[0].Result))
}
