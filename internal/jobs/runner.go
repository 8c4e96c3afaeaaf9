package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/babelpdf/internal/model"
	"github.com/seantiz/babelpdf/internal/store"
	"github.com/seantiz/babelpdf/internal/translator"
)

// errNoOutput is the fixed message recorded when the engine reports a
// finish event that carries no output artifact. Such a finish is recorded
// as a failure, never as a completed job with nothing to download.
const errNoOutput = "Translation finished but no output file found."

// Runner drives translation jobs to completion. Submit launches one
// goroutine per job; Wait joins all in-flight runners on shutdown so no
// job is abandoned mid-stream by a clean exit.
type Runner struct {
	jobs    Store
	history store.Store
	engine  translator.Translator
	broker  *Broker
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewRunner creates a job runner.
func NewRunner(jobStore Store, history store.Store, engine translator.Translator, logger *slog.Logger) *Runner {
	return &Runner{
		jobs:    jobStore,
		history: history,
		engine:  engine,
		broker:  NewBroker(),
		logger:  logger,
	}
}

// Broker returns the runner's progress broker for SSE subscription.
func (r *Runner) Broker() *Broker {
	return r.broker
}

// Submit records the job as queued and launches its driver goroutine. The
// goroutine operates on a copy of the job: from here on the driver is the
// job's only writer, all other callers read through the job store.
func (r *Runner) Submit(ctx context.Context, j *model.Job, req translator.Request) error {
	j.Status = model.StatusQueued
	j.Progress = 0
	if err := r.jobs.Put(ctx, j); err != nil {
		return fmt.Errorf("create job record: %w", err)
	}

	jCopy := *j
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(&jCopy, req)
	}()

	return nil
}

// Wait blocks until all in-flight job goroutines complete.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// execute runs one job lifecycle: queued→processing→completed/failed. It
// consumes the engine's event stream sequentially, so status mutations for
// this job are strictly ordered. There is no timeout and no cancellation:
// the job runs until the stream delivers a terminal event or ends.
func (r *Runner) execute(j *model.Job, req translator.Request) {
	defer r.broker.Close(j.ID)

	activeJobs.Inc()
	defer activeJobs.Dec()
	start := time.Now()

	r.setProcessing(j)

	events, err := r.engine.Translate(context.Background(), req)
	if err != nil {
		r.finish(j, model.StatusFailed, fmt.Sprintf("start translation: %v", err), start)
		return
	}

	for ev := range events {
		switch ev.Type {
		case translator.EventProgressStart, translator.EventProgressUpdate, translator.EventProgressEnd:
			j.Progress = ev.OverallProgress
			r.put(j)
			r.broker.Publish(*j)

		case translator.EventStageSummary:
			r.logger.Debug("translation stage", "job_id", j.ID, "stage", ev.Stage)

		case translator.EventFinish:
			j.Progress = 100
			if ev.Result != nil {
				j.OutputFiles = map[string]string{}
				if ev.Result.DualPDFPath != "" {
					j.OutputFiles[model.VariantDual] = ev.Result.DualPDFPath
				}
				if ev.Result.MonoPDFPath != "" {
					j.OutputFiles[model.VariantMono] = ev.Result.MonoPDFPath
				}
			}
			if _, _, ok := j.PreferredOutput(); !ok {
				r.finish(j, model.StatusFailed, errNoOutput, start)
				return
			}
			r.finish(j, model.StatusCompleted, "", start)
			return

		case translator.EventError:
			msg := ev.Message
			if msg == "" {
				msg = "unknown error"
			}
			r.finish(j, model.StatusFailed, msg, start)
			return
		}
	}

	// Stream ended without a terminal event; the bridge normally
	// synthesizes one, so this covers misbehaving engine implementations.
	r.finish(j, model.StatusFailed, "translation stream ended unexpectedly", start)
}

// setProcessing transitions the job out of queued before the first event.
func (r *Runner) setProcessing(j *model.Job) {
	j.Status = model.StatusProcessing
	j.Progress = 0
	r.put(j)
	r.broker.Publish(*j)
}

// finish applies the terminal status, records metrics, and folds the job
// into durable history. History write failures are logged; the job record
// still reaches its terminal state.
func (r *Runner) finish(j *model.Job, status, errMsg string, start time.Time) {
	now := time.Now().UTC()
	j.Status = status
	j.Error = errMsg
	j.FinishedAt = &now
	r.put(j)
	r.broker.Publish(*j)

	translationsTotal.WithLabelValues(status).Inc()
	translationDuration.Observe(time.Since(start).Seconds())

	if status == model.StatusFailed && errMsg != "" {
		r.logger.Warn("translation failed", "job_id", j.ID, "error", errMsg)
	} else {
		r.logger.Info("translation finished", "job_id", j.ID, "status", status)
	}

	entry := &model.HistoryEntry{
		ID:        j.ID,
		UserID:    j.UserID,
		Filename:  j.Filename,
		FileSize:  j.FileSize,
		MonoPath:  j.OutputFiles[model.VariantMono],
		DualPath:  j.OutputFiles[model.VariantDual],
		Status:    status,
		CreatedAt: now,
	}
	if err := r.history.CreateHistory(context.Background(), entry); err != nil {
		r.logger.Error("record history", "job_id", j.ID, "error", err)
	}
}

// put writes the driver's view of the job to the store.
func (r *Runner) put(j *model.Job) {
	if err := r.jobs.Put(context.Background(), j); err != nil {
		r.logger.Error("update job record", "job_id", j.ID, "error", err)
	}
}
