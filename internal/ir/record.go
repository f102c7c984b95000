package ir

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a TransferRecord.
type Status string

const (
	StatusApply    Status = "APPLY"
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
	StatusError    Status = "ERROR"
)

// Terminal reports whether s is FINISHED or ERROR.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusError
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusApply, StatusRunning, StatusFinished, StatusError:
		return true
	}
	return false
}

// ParseStatus converts a persisted or reported status string.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

// TransferRecord tracks one submitted pipeline.
type TransferRecord struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	RunID          string    `json:"run_id"`
	Status         Status    `json:"status"`
	Hostname       string    `json:"hostname"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CronExpression string    `json:"cron_expression,omitempty"`
	CreateTime     time.Time `json:"create_time"`
	UpdateTime     time.Time `json:"update_time"`
}

// Active reports whether the poller must keep watching the record: it
// carries a cron expression or has not reached a terminal status.
func (r TransferRecord) Active() bool {
	return r.CronExpression != "" || !r.Status.Terminal()
}

// HistoryEntry is an append-only snapshot taken at a terminal transition.
type HistoryEntry struct {
	Seq          int64     `json:"seq"`
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	RunID        string    `json:"run_id"`
	Status       Status    `json:"status"`
	Hostname     string    `json:"hostname"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// DependentType is the kind of artifact a dependency edge points at.
type DependentType string

const (
	DependentTrans DependentType = "TRANS"
	DependentJob   DependentType = "JOB"
)

// Valid reports whether t is TRANS or JOB.
func (t DependentType) Valid() bool {
	return t == DependentTrans || t == DependentJob
}

// DependencyEdge links a master job to one dependent artifact.
type DependencyEdge struct {
	MasterID      int64         `json:"master_id"`
	DependentID   int64         `json:"dependent_id"`
	DependentType DependentType `json:"dependent_type"`
	CreateTime    time.Time     `json:"create_time"`
}

// Handle is what callers see of a record: its id and current status.
type Handle struct {
	ID     int64  `json:"id"`
	Status Status `json:"status"`
}
