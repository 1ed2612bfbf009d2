package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) CheckAllOverdue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestOverdueSweep_Run(t *testing.T) {
	checker := new(MockChecker)
	checker.On("CheckAllOverdue", mock.Anything).Return(3, nil).Once()
	checker.On("CheckAllOverdue", mock.Anything).Return(0, errors.New("store down")).Once()

	task := OverdueSweep{Checker: checker, Spec: "@hourly"}
	assert.Equal(t, "overdue-sweep", task.Name())
	assert.Equal(t, "@hourly", task.Schedule())

	assert.NoError(t, task.Run(context.Background()))
	assert.EqualError(t, task.Run(context.Background()), "store down")
	checker.AssertExpectations(t)
}

func TestRunner_Execute(t *testing.T) {
	checker := new(MockChecker)
	checker.On("CheckAllOverdue", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})).Return(1, nil).Once()

	r := NewRunner()
	r.Execute(context.Background(), OverdueSweep{Checker: checker, Spec: "@hourly"})
	checker.AssertExpectations(t)
}

func TestRunner_StartRejectsBadSchedule(t *testing.T) {
	r := NewRunner(OverdueSweep{Checker: new(MockChecker), Spec: "every tuesday"})
	assert.Error(t, r.Start(context.Background()))
}

func TestRunner_StartSkipsDisabled(t *testing.T) {
	checker := new(MockChecker)
	r := NewRunner(OverdueSweep{Checker: checker, Spec: ""})
	require.NoError(t, r.Start(context.Background()))
	assert.Empty(t, r.cron.Entries())
	r.Stop()
	checker.AssertNotCalled(t, "CheckAllOverdue", mock.Anything)
}

func TestRunner_StartRegisters(t *testing.T) {
	r := NewRunner(OverdueSweep{Checker: new(MockChecker), Spec: "*/5 * * * *"})
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	entries := r.cron.Entries()
	require.Len(t, entries, 1)
	assert.WithinDuration(t, time.Now(), entries[0].Next, 5*time.Minute+time.Second)
}
