// Package dispatcher turns task deliveries into jobs. For every delivery it consults the job
// state store, claims the job, acknowledges the delivery and runs the pipeline.
//
// Acknowledgement happens right after the claim and never waits for the pipeline, so a crash
// mid-job loses the message. The processing record then carries a lease that stops being
// renewed, and once it expires a redelivered or resubmitted task may reclaim the job.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/aws_s3"
	"github.com/CaitMS/Web-Exploration-Engine/internal/broker"
	"github.com/CaitMS/Web-Exploration-Engine/internal/cache"
	"github.com/CaitMS/Web-Exploration-Engine/internal/metrics"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/CaitMS/Web-Exploration-Engine/internal/persistence"
)

const storeWriteTimeout = 10 * time.Second

// Decisions taken for a delivery.
const (
	DecisionMalformed   = "malformed"
	DecisionUnknownType = "unknown_type"
	DecisionCacheHit    = "cache_hit"
	DecisionDuplicate   = "duplicate"
	DecisionClaimed     = "claimed"
	DecisionReclaimed   = "reclaimed"
)

// Runner executes the pipeline of a task.
type Runner interface {
	Run(ctx context.Context, task model.Task) (*model.ScrapeResult, error)
}

// Dispatcher is shared by all workers. Reports, Outcomes and Events are optional.
type Dispatcher struct {
	Store    cache.JobStore
	Pipeline Runner
	Reports  aws_s3.ReportStorage
	Outcomes persistence.OutcomeStorage
	Events   chan<- *model.JobEvent
	Cfg      *config.WorkerConfig
	Version  string
	Owner    string
	Log      *slog.Logger
	Clock    func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

// Handle processes one delivery and returns the decision taken. It returns once the job, if
// one was started, has reached a terminal state.
func (d *Dispatcher) Handle(ctx context.Context, delivery *broker.Delivery) string {
	start := d.now()
	task, err := model.DecodeTask(delivery.Value)
	switch {
	case errors.Is(err, model.ErrUnknownTaskType):
		d.Log.Warn("unknown task type.", slog.String("url", task.URL), slog.String("type", string(task.Type)))
		d.write(ctx, task.Key(), &model.JobRecord{Status: model.StatusError, PollingPath: task.PollingPath()})
		d.ack(ctx, delivery)
		return d.decide(DecisionUnknownType)
	case err != nil:
		d.Log.Error("failed to decode task.", slog.String("err", err.Error()))
		d.ack(ctx, delivery)
		return d.decide(DecisionMalformed)
	}

	key := task.Key()
	log := d.Log.With(slog.String("key", key))
	decision := DecisionClaimed
	record, err := d.Store.Get(ctx, key)
	if err != nil {
		// An unreadable store is treated like an unknown job.
		metrics.ObserveStoreError("get")
		log.Warn("failed to read job record, treating job as new.", slog.String("err", err.Error()))
	}
	if record != nil {
		switch record.Status {
		case model.StatusCompleted:
			if record.Result != nil {
				record.Result.ElapsedSeconds = model.ElapsedSeconds(d.now().Sub(start))
			}
			d.write(ctx, key, record)
			d.ack(ctx, delivery)
			log.Debug("job already completed.")
			return d.decide(DecisionCacheHit)
		case model.StatusProcessing:
			if !record.LeaseExpired(d.now()) {
				d.ack(ctx, delivery)
				log.Debug("job already processing.", slog.String("owner", record.Owner))
				return d.decide(DecisionDuplicate)
			}
			log.Warn("reclaiming job with expired lease.", slog.String("owner", record.Owner))
			decision = DecisionReclaimed
		}
	}

	d.write(ctx, key, d.processingRecord(*task))
	d.ack(ctx, delivery)
	d.decide(decision)
	d.execute(ctx, *task)

	return decision
}

func (d *Dispatcher) execute(ctx context.Context, task model.Task) {
	key := task.Key()
	log := d.Log.With(slog.String("key", key))
	jobCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.Cfg.JobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, d.Cfg.JobTimeout)
	}
	defer cancel()

	stopHeartbeat := d.heartbeat(jobCtx, task)
	start := d.now()
	result, err := d.runPipeline(jobCtx, task)
	stopHeartbeat()
	duration := d.now().Sub(start)

	record := &model.JobRecord{Status: model.StatusCompleted, PollingPath: task.PollingPath(), Result: result}
	if err != nil {
		log.Error("job failed.", slog.String("err", err.Error()))
		record = &model.JobRecord{Status: model.StatusError, PollingPath: task.PollingPath()}
	} else {
		log.Info("job completed.", slog.Float64("elapsed", result.ElapsedSeconds))
	}
	d.write(context.WithoutCancel(ctx), key, record)
	d.finalize(context.WithoutCancel(ctx), task, record, duration)
}

// runPipeline converts a pipeline panic into an error.
func (d *Dispatcher) runPipeline(ctx context.Context, task model.Task) (result *model.ScrapeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	result, err = d.Pipeline.Run(ctx, task)
	if err == nil && result == nil {
		err = errors.New("pipeline returned no result")
	}
	return result, err
}

// heartbeat renews the lease of the processing record every third of the lease TTL. The
// returned function stops the renewals and waits until no write is in flight.
func (d *Dispatcher) heartbeat(ctx context.Context, task model.Task) func() {
	if d.Cfg.LeaseTTL <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(d.Cfg.LeaseTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.write(ctx, task.Key(), d.processingRecord(task))
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func (d *Dispatcher) processingRecord(task model.Task) *model.JobRecord {
	record := &model.JobRecord{
		Status:      model.StatusProcessing,
		PollingPath: task.PollingPath(),
		Owner:       d.Owner,
	}
	if d.Cfg.LeaseTTL > 0 {
		record.LeaseExpiresAt = d.now().Add(d.Cfg.LeaseTTL).UnixMilli()
	}
	return record
}

func (d *Dispatcher) finalize(ctx context.Context, task model.Task, record *model.JobRecord, duration time.Duration) {
	metrics.ObserveJob(string(task.Type), string(record.Status), duration)

	event := &model.JobEvent{
		URL:           task.URL,
		Type:          task.Type,
		Status:        record.Status,
		WorkerVersion: d.Version,
		FinishedAt:    d.now().UTC(),
	}
	if record.Result != nil {
		event.ElapsedSeconds = record.Result.ElapsedSeconds
		if d.Reports != nil {
			event.ReportLink = d.Reports.WriteReport(ctx, task, record.Result)
		}
	}
	if d.Outcomes != nil {
		d.Outcomes.Save(ctx, event)
	}
	if d.Events != nil {
		d.Events <- event
	}
}

func (d *Dispatcher) write(ctx context.Context, key string, record *model.JobRecord) {
	ctx, cancel := context.WithTimeout(ctx, storeWriteTimeout)
	defer cancel()
	if err := d.Store.Set(ctx, key, record); err != nil {
		metrics.ObserveStoreError("set")
		d.Log.Error("failed to write job record.", slog.String("key", key),
			slog.String("status", string(record.Status)), slog.String("err", err.Error()))
	}
}

func (d *Dispatcher) ack(ctx context.Context, delivery *broker.Delivery) {
	if err := delivery.Ack(ctx); err != nil {
		d.Log.Error("failed to acknowledge delivery.", slog.String("err", err.Error()))
	}
}

func (d *Dispatcher) decide(decision string) string {
	metrics.ObserveDispatch(decision)
	return decision
}
