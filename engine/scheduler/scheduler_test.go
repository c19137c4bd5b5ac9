package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/engine/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCounter struct{}

func (failingCounter) CountWaiting(ctx context.Context) (int, error) {
	return 0, errors.New("db down")
}

func TestRefresh_CountsWaitingSessions(t *testing.T) {
	ctx := context.Background()
	repo := enginetest.NewSessionRepository()

	waiting := engine.NewSession(enginetest.Conversation("conv-1", "user-1"), "main")
	waiting.WaitForUserInput("b1")
	require.NoError(t, repo.Save(ctx, *waiting))
	require.NoError(t, repo.Save(ctx, *engine.NewSession(enginetest.Conversation("conv-2", "user-2"), "main")))

	count, err := NewMetricsScheduler(repo, "").Refresh(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRefresh_PropagatesErrors(t *testing.T) {
	_, err := NewMetricsScheduler(failingCounter{}, "").Refresh(context.Background())
	require.Error(t, err)
}

func TestStart_RejectsInvalidSchedule(t *testing.T) {
	s := NewMetricsScheduler(enginetest.NewSessionRepository(), "every now and then")
	require.Error(t, s.Start(context.Background()))
	s.Stop()
}

func TestStartStop(t *testing.T) {
	s := NewMetricsScheduler(enginetest.NewSessionRepository(), "@every 1h")
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()
}
