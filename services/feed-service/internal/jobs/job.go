package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// State состояние задачи
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal сообщает, что задача завершена
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job запись задачи в очереди
type Job struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	TenantID   string          `json:"tenant_id"`
	State      State           `json:"state"`
	Progress   int             `json:"progress"`
	Payload    json.RawMessage `json:"payload"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// NewJob создает задачу в состоянии queued
func NewJob(queue, tenantID string, payload any) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:        uuid.New().String(),
		Queue:     queue,
		TenantID:  tenantID,
		State:     StateQueued,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Clone возвращает копию, которую можно отдавать наружу
func (j *Job) Clone() *Job {
	c := *j
	c.Payload = append(json.RawMessage(nil), j.Payload...)
	c.Result = append(json.RawMessage(nil), j.Result...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

func (j *Job) start(now time.Time) {
	j.State = StateRunning
	j.StartedAt = &now
}

func (j *Job) complete(result json.RawMessage, now time.Time) {
	j.State = StateCompleted
	j.Progress = 100
	j.Result = result
	j.FinishedAt = &now
}

func (j *Job) fail(reason string, now time.Time) {
	j.State = StateFailed
	j.Error = reason
	j.FinishedAt = &now
}
