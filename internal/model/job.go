package model

import (
	"math"
	"time"
)

type JobStatus string

const (
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
)

// JobRecord is the value kept in the job state store under Task.Key().
// Owner and LeaseExpiresAt are only set while the job is processing.
type JobRecord struct {
	Status         JobStatus     `json:"status"`
	PollingPath    string        `json:"pollingPath,omitempty"`
	Result         *ScrapeResult `json:"result,omitempty"`
	Owner          string        `json:"owner,omitempty"`
	LeaseExpiresAt int64         `json:"leaseExpiresAt,omitempty"` // unix milliseconds
}

// LeaseExpired reports whether a processing record's claim may be taken over.
// Records without a lease are never considered expired.
func (r *JobRecord) LeaseExpired(now time.Time) bool {
	return r.Status == StatusProcessing && r.LeaseExpiresAt > 0 && now.UnixMilli() >= r.LeaseExpiresAt
}

// JobEvent is published once a job reaches a terminal state.
type JobEvent struct {
	URL            string    `json:"url"`
	Type           TaskType  `json:"type"`
	Status         JobStatus `json:"status"`
	ElapsedSeconds float64   `json:"elapsedSeconds"`
	ReportLink     string    `json:"reportLink,omitempty"`
	WorkerVersion  string    `json:"workerVersion"`
	FinishedAt     time.Time `json:"finishedAt"`
}

func (e *JobEvent) Key() string {
	return JobKey(e.URL, e.Type)
}

// ElapsedSeconds converts a duration to seconds rounded to four decimals.
func ElapsedSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1e4) / 1e4
}
