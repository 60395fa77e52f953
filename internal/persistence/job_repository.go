package persistence

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
)

// OutcomeStorage records terminal job transitions.
type OutcomeStorage interface {
	Save(ctx context.Context, event *model.JobEvent)
}

type JobRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewJobRepository(db *sql.DB, log *slog.Logger) *JobRepository {
	return &JobRepository{db: db, log: log}
}

func (jr *JobRepository) Save(ctx context.Context, event *model.JobEvent) {
	_, err := jr.db.ExecContext(ctx, "INSERT INTO scrape_job (url, task_type, status, elapsed_seconds, report_link, worker_version, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		event.URL,
		event.Type,
		event.Status,
		event.ElapsedSeconds,
		event.ReportLink,
		event.WorkerVersion,
		event.FinishedAt)
	if err != nil {
		jr.log.Error("failed to save job outcome to database.", slog.String("err", err.Error()))
		return
	}
	jr.log.Debug("job outcome saved to db.", slog.String("key", event.Key()))
}
