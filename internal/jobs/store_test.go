package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seantiz/babelpdf/internal/model"
)

func makeJob(status string) *model.Job {
	return &model.Job{
		ID:        model.NewID(),
		UserID:    "u1",
		Filename:  "report.pdf",
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	j := makeJob(model.StatusQueued)

	if err := s.Put(ctx, j); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != j.ID || got.Status != model.StatusQueued {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	j := makeJob(model.StatusProcessing)
	j.OutputFiles = map[string]string{"dual": "/out/d.pdf"}
	if err := s.Put(ctx, j); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Mutating a read copy must not leak into the store.
	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.Progress = 99
	got.OutputFiles["dual"] = "/tampered"

	again, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Progress != 0 || again.OutputFiles["dual"] != "/out/d.pdf" {
		t.Errorf("store record was mutated through a read copy: %+v", again)
	}
}

func TestMemoryStoreRejectsTerminalRegression(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	j := makeJob(model.StatusCompleted)
	if err := s.Put(ctx, j); err != nil {
		t.Fatalf("Put: %v", err)
	}

	j.Status = model.StatusProcessing
	if err := s.Put(ctx, j); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Put regression = %v, want ErrInvalidTransition", err)
	}

	j.Status = model.StatusFailed
	if err := s.Put(ctx, j); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Put completed→failed = %v, want ErrInvalidTransition", err)
	}

	// Re-writing the same terminal status is allowed (idempotent update).
	j.Status = model.StatusCompleted
	if err := s.Put(ctx, j); err != nil {
		t.Errorf("Put same terminal status = %v, want nil", err)
	}
}

func TestMemoryStoreDeleteAndList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	older := makeJob(model.StatusQueued)
	older.CreatedAt = time.Now().UTC().Add(-time.Minute)
	newer := makeJob(model.StatusQueued)
	for _, j := range []*model.Job{older, newer} {
		if err := s.Put(ctx, j); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	jobs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
	if jobs[0].ID != newer.ID {
		t.Error("List not ordered newest first")
	}

	if err := s.Delete(ctx, older.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, older.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	// Deleting a missing job is not an error.
	if err := s.Delete(ctx, older.ID); err != nil {
		t.Errorf("Delete again = %v", err)
	}
}
