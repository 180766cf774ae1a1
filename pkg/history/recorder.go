package history

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mimir-aip/cropwise/pkg/logger"
	"github.com/mimir-aip/cropwise/pkg/metrics"
	"github.com/mimir-aip/cropwise/pkg/models"
)

// DefaultQueueSize is the number of entries buffered ahead of the writer
const DefaultQueueSize = 256

// saveTimeout bounds a single background write
const saveTimeout = 5 * time.Second

// Saver persists a history entry
type Saver interface {
	Save(ctx context.Context, e *models.HistoryEntry) error
}

// Recorder writes history entries in the background. Record never blocks the
// caller and never reports an error: a full queue drops the entry, and failed
// writes are logged.
type Recorder struct {
	store Saver
	queue chan *models.HistoryEntry
	done  chan struct{}
	log   zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts the background writer
func NewRecorder(store Saver, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &Recorder{
		store: store,
		queue: make(chan *models.HistoryEntry, queueSize),
		done:  make(chan struct{}),
		log:   logger.Component("history"),
	}
	go r.run()
	return r
}

// Record queues an entry for userID. Anonymous calls are ignored.
func (r *Recorder) Record(userID string, kind models.HistoryKind, input, result any) {
	if userID == "" {
		return
	}

	in, err := json.Marshal(input)
	if err != nil {
		r.fail(kind, models.NewPersistenceFault("encode history input", err))
		return
	}
	out, err := json.Marshal(result)
	if err != nil {
		r.fail(kind, models.NewPersistenceFault("encode history result", err))
		return
	}

	entry := &models.HistoryEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		Input:     in,
		Result:    out,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.Warn().Str("kind", string(kind)).Msg("History recorder closed, entry dropped")
		metrics.HistoryRecordsTotal.WithLabelValues("dropped").Inc()
		return
	}

	select {
	case r.queue <- entry:
	default:
		r.log.Warn().Str("kind", string(kind)).Str("user_id", userID).Msg("History queue full, entry dropped")
		metrics.HistoryRecordsTotal.WithLabelValues("dropped").Inc()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := r.store.Save(ctx, entry)
		cancel()
		if err != nil {
			r.fail(entry.Kind, models.NewPersistenceFault("save history", err))
			continue
		}
		metrics.HistoryRecordsTotal.WithLabelValues("saved").Inc()
	}
}

func (r *Recorder) fail(kind models.HistoryKind, err error) {
	r.log.Error().Err(err).Str("kind", string(kind)).Msg("Failed to record history")
	metrics.HistoryRecordsTotal.WithLabelValues("failed").Inc()
}

// Close stops accepting entries and waits for the queue to drain or ctx to end
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
