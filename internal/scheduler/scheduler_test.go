package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/domain"
	"github.com/spec-kit/marketplace-support/internal/ingest"
	"github.com/spec-kit/marketplace-support/internal/queue"
)

type fakeCredRepo struct {
	profiles []string
}

func (f *fakeCredRepo) GetByID(context.Context, string) (*domain.Credential, error) {
	return nil, nil
}

func (f *fakeCredRepo) ActiveByProfile(context.Context, string) ([]domain.Credential, error) {
	return nil, nil
}

func (f *fakeCredRepo) ListProfilesWithActive(context.Context) ([]string, error) {
	return f.profiles, nil
}

func TestSweepSpacesProfilesOut(t *testing.T) {
	q := queue.NewMemoryQueue()
	s := New(&fakeCredRepo{profiles: []string{"p1", "p2", "p3"}}, q, zap.NewNop(), 5*time.Minute, 5*time.Second)

	s.sweep(context.Background())

	entries := q.ByType(ingest.JobTypeIngestProfile)
	if len(entries) != 3 {
		t.Fatalf("got %d jobs, want 3", len(entries))
	}
	for i, entry := range entries {
		wantDelay := time.Duration(i) * 5 * time.Second
		if entry.Delay != wantDelay {
			t.Errorf("job %d delay = %v, want %v", i, entry.Delay, wantDelay)
		}
		var payload ingest.IngestProfilePayload
		if err := json.Unmarshal(entry.Job.Payload, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if payload.FullHistory {
			t.Error("scheduled sweeps must be incremental")
		}
	}
}

func TestSweepWithNoProfilesEnqueuesNothing(t *testing.T) {
	q := queue.NewMemoryQueue()
	s := New(&fakeCredRepo{}, q, zap.NewNop(), 5*time.Minute, 5*time.Second)

	s.sweep(context.Background())
	if len(q.Entries) != 0 {
		t.Errorf("got %d jobs, want 0", len(q.Entries))
	}
}
