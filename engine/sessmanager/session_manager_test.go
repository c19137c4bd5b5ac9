package sessmanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/engine/enginetest"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(locker engine.Locker, flows ...*engine.Flow) (*SessionManager, *enginetest.SessionRepository) {
	repo := enginetest.NewSessionRepository()
	return NewSessionManager(repo, enginetest.NewFlowRepository(flows...), locker, nil), repo
}

func greetingFlow(id string) *engine.Flow {
	return enginetest.Flow(id, enginetest.Node("m1", "", &engine.MessageData{Text: "hi"}))
}

func TestLoadOrCreate_NewSessionUsesDefaultFlow(t *testing.T) {
	m, repo := newManager(nil, greetingFlow("main"))
	conv := enginetest.Conversation("conv-1", "user-1")

	session, flow, err := m.LoadOrCreate(context.Background(), conv)

	require.NoError(t, err)
	assert.Equal(t, kernel.FlowID("main"), flow.ID)
	assert.Equal(t, kernel.FlowID("main"), session.ActiveFlowID)
	assert.Equal(t, conv.AIAgentID, session.AIAgentID)
	assert.Nil(t, session.CurrentNodeID)
	assert.Zero(t, repo.Saves)
}

func TestLoadOrCreate_NoDefaultFlow(t *testing.T) {
	m, _ := newManager(nil)

	_, _, err := m.LoadOrCreate(context.Background(), enginetest.Conversation("conv-1", "user-1"))

	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeBusiness))
}

func TestLoadOrCreate_ExistingSessionKeepsActiveFlow(t *testing.T) {
	other := greetingFlow("other")
	other.IsDefault = false
	m, repo := newManager(nil, greetingFlow("main"), other)
	conv := enginetest.Conversation("conv-1", "user-1")

	stored := engine.NewSession(conv, "other")
	stored.WaitForUserInput("m1")
	require.NoError(t, repo.Save(context.Background(), *stored))

	session, flow, err := m.LoadOrCreate(context.Background(), conv)

	require.NoError(t, err)
	assert.Equal(t, kernel.FlowID("other"), flow.ID)
	assert.True(t, session.IsWaitingAt("m1"))
}

func TestLoadOrCreate_InactiveFlowFallsBackToDefault(t *testing.T) {
	other := greetingFlow("other")
	other.IsDefault = false
	other.IsActive = false
	m, repo := newManager(nil, greetingFlow("main"), other)
	conv := enginetest.Conversation("conv-1", "user-1")

	stored := engine.NewSession(conv, "other")
	stored.SetAttribute("plan", engine.AttributeTypeString, "gold")
	stored.WaitForUserInput("m1")
	require.NoError(t, repo.Save(context.Background(), *stored))

	session, flow, err := m.LoadOrCreate(context.Background(), conv)

	require.NoError(t, err)
	assert.Equal(t, kernel.FlowID("main"), flow.ID)
	assert.Equal(t, kernel.FlowID("main"), session.ActiveFlowID)
	assert.Nil(t, session.CurrentNodeID)
	plan, ok := session.Attributes.Get("plan")
	assert.True(t, ok)
	assert.Equal(t, "gold", plan)
}

func TestAcquire_DistributedLockConflict(t *testing.T) {
	locker := enginetest.NewLocker()
	m, _ := newManager(locker)
	ctx := context.Background()

	// otro proceso tiene el lock
	unlockOther, err := locker.Lock(ctx, lockKey("conv-1"), time.Second)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "conv-1")
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeConflict))
	assert.Empty(t, m.local)

	require.NoError(t, unlockOther(ctx))
	release, err := m.Acquire(ctx, "conv-1")
	require.NoError(t, err)
	release()
	assert.Empty(t, m.local)
}

func TestAcquire_SerializesTurnsLocally(t *testing.T) {
	m, _ := newManager(nil)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, "conv-1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			active++
			maxSeen = max(maxSeen, active)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, m.local)
}

func TestAcquire_LocalWaitHonorsContext(t *testing.T) {
	m, _ := newManager(nil)

	release, err := m.Acquire(context.Background(), "conv-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = m.Acquire(ctx, "conv-1")
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeConflict))
	assert.Less(t, time.Since(start), time.Second)

	// la espera cancelada no deja referencias colgadas
	release()
	assert.Empty(t, m.local)

	release, err = m.Acquire(context.Background(), "conv-1")
	require.NoError(t, err)
	release()
}
