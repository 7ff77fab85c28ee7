package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-threshold-alerts/internal/config"
	"price-threshold-alerts/internal/source"
	"price-threshold-alerts/internal/threshold"
)

type fakeLocker struct {
	acquired bool
	err      error
	unlocked int
	keys     []int64
}

func (f *fakeLocker) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	f.keys = append(f.keys, key)
	if f.err != nil || !f.acquired {
		return nil, false, f.err
	}
	return func() { f.unlocked++ }, true, nil
}

func newTestService(t *testing.T, locker *fakeLocker, key int64) (*Service, *fakeSource) {
	t.Helper()
	src := &fakeSource{values: map[string]float64{"x": 3}}
	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{AdvisoryLockKey: key},
		Groups: []threshold.Group{{
			Name:    "nft_collections",
			Kind:    threshold.FloorPrice,
			Members: []threshold.Member{member("x", 1, 5)},
		}},
	}
	runner := NewRunner(map[threshold.Kind]source.Source{threshold.FloorPrice: src}, &fakeNotifier{}, nil)
	if locker == nil {
		return New(cfg, nil, runner, nil, zerolog.Nop()), src
	}
	return New(cfg, nil, runner, locker, zerolog.Nop()), src
}

func TestProcessTickWithoutLock(t *testing.T) {
	svc, src := newTestService(t, nil, 0)
	require.NoError(t, svc.ProcessTick(context.Background(), time.Now()))
	assert.Equal(t, []string{"x"}, src.calls)
}

func TestProcessTickHoldsLock(t *testing.T) {
	locker := &fakeLocker{acquired: true}
	svc, src := newTestService(t, locker, 77)
	require.NoError(t, svc.ProcessTick(context.Background(), time.Now()))
	assert.Equal(t, []int64{77}, locker.keys)
	assert.Equal(t, 1, locker.unlocked)
	assert.Len(t, src.calls, 1)
}

func TestProcessTickSkipsWhenLockHeldElsewhere(t *testing.T) {
	locker := &fakeLocker{acquired: false}
	svc, src := newTestService(t, locker, 77)
	require.NoError(t, svc.ProcessTick(context.Background(), time.Now()))
	assert.Empty(t, src.calls)
}

func TestProcessTickLockError(t *testing.T) {
	locker := &fakeLocker{err: errors.New("db gone")}
	svc, src := newTestService(t, locker, 77)
	require.Error(t, svc.ProcessTick(context.Background(), time.Now()))
	assert.Empty(t, src.calls)
}

func TestRunRequiresScheduler(t *testing.T) {
	svc, _ := newTestService(t, nil, 0)
	assert.Error(t, svc.Run(context.Background()))
}
