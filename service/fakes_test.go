package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"ImageToVideo-server/models"
)

type gatewayFunc func(ctx context.Context, images []models.ImageAsset, cfg models.VideoConfig) (*models.GeneratedVideo, error)

func (f gatewayFunc) Generate(ctx context.Context, images []models.ImageAsset, cfg models.VideoConfig) (*models.GeneratedVideo, error) {
	return f(ctx, images, cfg)
}

func twoImages() []models.ImageAsset {
	return []models.ImageAsset{
		{Name: "first.png", ContentType: "image/png", Data: []byte("first")},
		{Name: "last.jpg", ContentType: "image/jpeg", Data: []byte("last")},
	}
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = data
	m.types[objectName] = contentType
	return nil
}

func (m *memStore) Get(ctx context.Context, objectName string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[objectName]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectName)
	}
	return data, nil
}

func (m *memStore) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return "https://minio.test/bucket/" + objectName, nil
}

type memRuns struct {
	mu       sync.Mutex
	runs     map[string]*models.Run
	saves    int
	statuses []string
}

func newMemRuns(runs ...*models.Run) *memRuns {
	m := &memRuns{runs: map[string]*models.Run{}}
	for _, r := range runs {
		m.runs[r.ID] = r
	}
	return m
}

func (m *memRuns) CreateRun(ctx context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.Status == "" {
		run.Status = models.RunStatusQueued
	}
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

func (m *memRuns) GetRun(ctx context.Context, id string) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, models.ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

func (m *memRuns) SaveState(ctx context.Context, id string, snap models.RunSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return models.ErrRunNotFound
	}
	m.saves++
	if run.State.Version < snap.Version {
		run.State = snap
	}
	return nil
}

func (m *memRuns) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return errors.New("missing run")
	}
	run.Status = status
	if errMsg != "" {
		run.Error = errMsg
	}
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memRuns) run(id string) models.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.runs[id]
}

// counterValue reads one labelled counter sample from a registry.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
