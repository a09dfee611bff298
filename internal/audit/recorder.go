package audit

import (
	"context"
	"errors"
	"sync"

	"github.com/nerrad567/gpio-remote-core/internal/bridges/gpio"
)

// recorderQueueSize is the buffer for pending command records. Records
// beyond this are dropped so a slow disk never stalls command delivery.
const recorderQueueSize = 256

// ErrQueueFull is returned by RecordCommand when the write queue is full.
var ErrQueueFull = errors.New("audit: record queue full")

// Logger is the subset of the structured logger the recorder needs.
type Logger interface {
	Error(msg string, keysAndValues ...any)
}

// Recorder writes command records asynchronously. It implements
// gpio.CommandRecorder.
type Recorder struct {
	repo   Repository
	ch     chan *CommandRecord
	logger Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	cancel   context.CancelFunc
}

// NewRecorder creates a recorder over repo. Call Start before use.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		ch:     make(chan *CommandRecord, recorderQueueSize),
		logger: logger,
	}
}

// RecordCommand enqueues rec for writing. It never blocks.
func (r *Recorder) RecordCommand(_ context.Context, rec gpio.CommandRecord) error {
	entry := &CommandRecord{
		CommandID: rec.CommandID,
		Item:      rec.Item,
		Endpoint:  rec.Endpoint,
		Command:   rec.Command,
		EventKind: rec.EventKind,
		Outcome:   Outcome(rec.Outcome),
		Error:     rec.Error,
		Source:    rec.Source,
	}

	select {
	case r.ch <- entry:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the writer goroutine.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.drain(ctx)
}

// Stop flushes queued records and waits for the writer to exit.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
	})
}

// drain writes entries serially, which suits SQLite's single-writer model.
// On cancellation it writes whatever is still queued, then returns.
func (r *Recorder) drain(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *CommandRecord) {
	// The caller's context is gone by the time the entry is written.
	if err := r.repo.Create(context.Background(), entry); err != nil && r.logger != nil {
		r.logger.Error("command log write failed",
			"item", entry.Item,
			"outcome", string(entry.Outcome),
			"error", err,
		)
	}
}
