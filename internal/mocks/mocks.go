// Package mocks inneholder håndskrevne testify-mocker for
// grensesnittene pipelinen og innsamleren er avhengige av.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/jonmartinstorm/esmsnusern/internal/config"
	"github.com/jonmartinstorm/esmsnusern/internal/models"
	"github.com/jonmartinstorm/esmsnusern/internal/runner"
)

// MockStore oppfyller runner.Store og refresh.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ReplaceTools(ctx context.Context, tools []models.ToolRecord, snapshot time.Time) error {
	args := m.Called(ctx, tools, snapshot)
	return args.Error(0)
}

func (m *MockStore) ReplaceStats(ctx context.Context, stats []models.ToolStats, snapshot time.Time) error {
	args := m.Called(ctx, stats, snapshot)
	return args.Error(0)
}

func (m *MockStore) RecordDropped(ctx context.Context, dropped []models.Dropped, snapshot time.Time) error {
	args := m.Called(ctx, dropped, snapshot)
	return args.Error(0)
}

func (m *MockStore) StatsCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) GetRefreshState(ctx context.Context) (*models.RefreshState, error) {
	args := m.Called(ctx)
	state, _ := args.Get(0).(*models.RefreshState)
	return state, args.Error(1)
}

func (m *MockStore) SetRefreshState(ctx context.Context, state models.RefreshState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockRunnerDeps oppfyller runner.RunnerDeps.
type MockRunnerDeps struct {
	mock.Mock
}

func (m *MockRunnerDeps) OpenStore(cfg config.Config) (runner.Store, error) {
	args := m.Called(cfg)
	store, _ := args.Get(0).(runner.Store)
	return store, args.Error(1)
}

func (m *MockRunnerDeps) LoadInventories(ctx context.Context, cfg config.Config) ([]models.ToolRecord, map[string]int, error) {
	args := m.Called(ctx, cfg)
	records, _ := args.Get(0).([]models.ToolRecord)
	perSource, _ := args.Get(1).(map[string]int)
	return records, perSource, args.Error(2)
}

func (m *MockRunnerDeps) Enrich(ctx context.Context, cfg config.Config, tools []models.ToolRecord) ([]models.ToolStats, []models.Dropped) {
	args := m.Called(ctx, cfg, tools)
	stats, _ := args.Get(0).([]models.ToolStats)
	dropped, _ := args.Get(1).([]models.Dropped)
	return stats, dropped
}

func (m *MockRunnerDeps) ExportStats(ctx context.Context, cfg config.Config, stats []models.ToolStats, dropped []models.Dropped, snapshot time.Time) error {
	args := m.Called(ctx, cfg, stats, dropped, snapshot)
	return args.Error(0)
}

// MockCollectorStore oppfyller collector.Store.
type MockCollectorStore struct {
	mock.Mock
}

func (m *MockCollectorStore) AppendInteractions(ctx context.Context, interactions []models.Interaction) (int64, error) {
	args := m.Called(ctx, interactions)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCollectorStore) UnseenLogins(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	logins, _ := args.Get(0).([]string)
	return logins, args.Error(1)
}

func (m *MockCollectorStore) UpsertUserDetails(ctx context.Context, user models.UserDetails) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockCollectorStore) UpsertOrg(ctx context.Context, org models.OrgDetails) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *MockCollectorStore) GetCursor(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockCollectorStore) SetCursor(ctx context.Context, repo string) error {
	args := m.Called(ctx, repo)
	return args.Error(0)
}

func (m *MockCollectorStore) ClearCursor(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
