package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	RunStatusQueued     = "queued"
	RunStatusProcessing = "processing"
	RunStatusFinished   = "finished"
	RunStatusFailed     = "failed"
)

var ErrRunNotFound = errors.New("run not found")

// Run is the persisted record of one asynchronous generation run.
type Run struct {
	ID         string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Status     string      `gorm:"type:varchar(32);index" json:"status"`
	Config     VideoConfig `gorm:"type:json" json:"config"`
	AssetKeys  AssetKeys   `gorm:"type:json" json:"assetKeys"`
	State      RunSnapshot `gorm:"type:json" json:"state"`
	Error      string      `json:"error,omitempty"`
	StartedAt  *time.Time  `json:"startedAt,omitempty"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

func (Run) TableName() string {
	return "run"
}

func (r *Run) IsTerminal() bool {
	return r.Status == RunStatusFinished || r.Status == RunStatusFailed
}

// AssetKeys are the object-store keys of a run's reference images, in order.
type AssetKeys []string

func (k AssetKeys) Value() (driver.Value, error) {
	return json.Marshal([]string(k))
}

func (k *AssetKeys) Scan(value interface{}) error {
	return scanJSON(value, (*[]string)(k))
}

// RunRepository persists runs and their state snapshots.
type RunRepository interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	// SaveState stores a snapshot unless a newer version is already stored.
	SaveState(ctx context.Context, id string, snap RunSnapshot) error
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
}

type GormRunRepository struct {
	DB *gorm.DB
}

func NewRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{DB: db}
}

func (r *GormRunRepository) CreateRun(ctx context.Context, run *Run) error {
	now := time.Now()
	run.CreatedAt = now
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = RunStatusQueued
	}
	return r.DB.WithContext(ctx).Create(run).Error
}

func (r *GormRunRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := r.DB.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *GormRunRepository) SaveState(ctx context.Context, id string, snap RunSnapshot) error {
	state, err := snap.Value()
	if err != nil {
		return err
	}
	// snapshots are written from concurrent goroutines; never let an older one win
	return r.DB.WithContext(ctx).Model(&Run{}).
		Where("id = ? AND (JSON_EXTRACT(state, '$.version') IS NULL OR JSON_EXTRACT(state, '$.version') < ?)", id, snap.Version).
		Updates(map[string]interface{}{
			"state":      state,
			"updated_at": time.Now(),
		}).Error
}

func (r *GormRunRepository) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	switch status {
	case RunStatusProcessing:
		updates["started_at"] = now
	case RunStatusFinished, RunStatusFailed:
		updates["finished_at"] = now
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	return r.DB.WithContext(ctx).Model(&Run{}).Where("id = ?", id).Updates(updates).Error
}
