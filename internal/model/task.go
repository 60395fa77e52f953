package model

import (
	"errors"
	"fmt"
	netUrl "net/url"
	"strings"
)

type TaskType string

const (
	FullScrape       TaskType = "scrape"
	ReadRobots       TaskType = "read-robots"
	ScrapeMetadata   TaskType = "scrape-metadata"
	ScrapeStatus     TaskType = "scrape-status"
	ClassifyIndustry TaskType = "classify-industry"
	ScrapeLogo       TaskType = "scrape-logo"
	ScrapeImages     TaskType = "scrape-images"
	Screenshot       TaskType = "screenshot"
	ScrapeContact    TaskType = "scrape-contact-info"
	ScrapeAddresses  TaskType = "scrape-addresses"
	SeoAnalysisTask  TaskType = "seo-analysis"
)

// TaskTypes lists every accepted task type literal.
var TaskTypes = []TaskType{
	FullScrape, ReadRobots, ScrapeMetadata, ScrapeStatus, ClassifyIndustry, ScrapeLogo,
	ScrapeImages, Screenshot, ScrapeContact, ScrapeAddresses, SeoAnalysisTask,
}

var (
	ErrMalformedTask   = errors.New("malformed task")
	ErrUnknownTaskType = errors.New("unknown task type")
)

func (t TaskType) Valid() bool {
	for _, tt := range TaskTypes {
		if t == tt {
			return true
		}
	}
	return false
}

// Task is a unit of work. The (URL, Type) pair is its identity.
type Task struct {
	URL  string   `json:"url"`
	Type TaskType `json:"type"`
}

// Key returns the job state store key for the task.
func (t Task) Key() string {
	return JobKey(t.URL, t.Type)
}

func (t Task) PollingPath() string {
	return fmt.Sprintf("/scraper/status?type=%s&url=%s", netUrl.QueryEscape(string(t.Type)),
		netUrl.QueryEscape(t.URL))
}

func JobKey(url string, taskType TaskType) string {
	return url + "-" + string(taskType)
}

// DecodeTask parses an inbound task message. A message that decodes but names an unknown
// type is returned together with ErrUnknownTaskType so the caller can still address its key.
func DecodeTask(raw []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTask, err)
	}
	task.URL = strings.TrimSpace(task.URL)
	if task.URL == "" || task.Type == "" {
		return nil, fmt.Errorf("%w: url and type are required", ErrMalformedTask)
	}
	if !task.Type.Valid() {
		return &task, fmt.Errorf("%w: %q", ErrUnknownTaskType, task.Type)
	}

	return &task, nil
}
