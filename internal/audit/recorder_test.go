package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gpio-remote-core/internal/bridges/gpio"
)

func TestRecorder_WritesRecords(t *testing.T) {
	repo := openTestRepo(t)
	rec := NewRecorder(repo, nil)
	rec.Start(context.Background())

	inputs := []gpio.CommandRecord{
		{CommandID: "c1", Item: "porch_light", Endpoint: "10.0.0.12:8080", Command: "ON", EventKind: "SET", Outcome: gpio.OutcomeSent, Source: "mqtt"},
		{Item: "front_door", Command: "ON", Outcome: gpio.OutcomeRejected, Error: "gpio: item is not an output", Source: "api"},
	}
	for _, in := range inputs {
		if err := rec.RecordCommand(context.Background(), in); err != nil {
			t.Fatalf("RecordCommand() error = %v", err)
		}
	}

	// Stop flushes the queue.
	rec.Stop()
	rec.Stop()

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("Total = %d, want 2", result.Total)
	}

	byItem := map[string]CommandRecord{}
	for _, r := range result.Records {
		byItem[r.Item] = r
	}
	if got := byItem["porch_light"]; got.CommandID != "c1" || got.Outcome != OutcomeSent || got.EventKind != "SET" {
		t.Errorf("porch_light record = %+v", got)
	}
	if got := byItem["front_door"]; got.Outcome != OutcomeRejected || got.Error == "" || got.Source != "api" {
		t.Errorf("front_door record = %+v", got)
	}
}

type failingRepo struct{}

func (failingRepo) Create(context.Context, *CommandRecord) error {
	return errors.New("disk full")
}

func (failingRepo) List(context.Context, Filter) (*ListResult, error) {
	return &ListResult{}, nil
}

type recordingLogger struct {
	msgs []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.msgs = append(l.msgs, msg)
}

func TestRecorder_LogsWriteFailures(t *testing.T) {
	log := &recordingLogger{}
	rec := NewRecorder(failingRepo{}, log)

	// Queue before starting so the drain on Stop sees it.
	if err := rec.RecordCommand(context.Background(), gpio.CommandRecord{Item: "x", Outcome: gpio.OutcomeSent}); err != nil {
		t.Fatalf("RecordCommand() error = %v", err)
	}
	rec.Start(context.Background())
	rec.Stop()

	if len(log.msgs) != 1 {
		t.Errorf("logged %d errors, want 1", len(log.msgs))
	}
}

func TestRecorder_QueueFull(t *testing.T) {
	rec := NewRecorder(failingRepo{}, nil)

	for i := 0; i < recorderQueueSize; i++ {
		if err := rec.RecordCommand(context.Background(), gpio.CommandRecord{Outcome: gpio.OutcomeSent}); err != nil {
			t.Fatalf("RecordCommand() error = %v before queue filled", err)
		}
	}
	if err := rec.RecordCommand(context.Background(), gpio.CommandRecord{Outcome: gpio.OutcomeSent}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("RecordCommand() error = %v, want ErrQueueFull", err)
	}
}
