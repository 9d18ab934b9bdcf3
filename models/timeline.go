package models

import (
	"database/sql/driver"
	"encoding/json"
)

type StageStatus string

const (
	StageStatusPending StageStatus = "pending"
	StageStatusActive  StageStatus = "active"
	StageStatusDone    StageStatus = "done"
	StageStatusError   StageStatus = "error"
)

// StageDefinition is one fixed phase of the generation pipeline.
type StageDefinition struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	EstimatedMinutes int    `json:"etaMinutes,omitempty"`
}

type TimelineStep struct {
	StageDefinition
	Status StageStatus `json:"status"`
}

// Milestone is the feedback attached to one stage transition of a run.
type Milestone struct {
	StageID         string   `json:"stepId"`
	Feedback        string   `json:"feedback"`
	Recommendations []string `json:"recommendations"`
}

// RunSnapshot is a point-in-time copy of a run's observable state.
type RunSnapshot struct {
	Version     uint64          `json:"version"`
	Steps       []TimelineStep  `json:"steps"`
	Milestones  []Milestone     `json:"milestones"`
	ActivityLog []string        `json:"activityLog"`
	Result      *GeneratedVideo `json:"result"`
	Error       *string         `json:"error"`
	IsRunning   bool            `json:"isRunning"`
}

func (s RunSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *RunSnapshot) Scan(value interface{}) error {
	return scanJSON(value, s)
}
