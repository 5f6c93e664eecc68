package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/users-service/internal/domain"
	"github.com/viralforge/users-service/internal/ports"
)

// leak registers a live identity in the gateway and a due task for it.
func leak(f *fixture) domain.CompensationTask {
	id, _ := f.gateway.CreateIdentity(context.Background(), "leak@example.com")
	task := domain.NewCompensationTask(id, "leak@example.com", "IdentityProviderUnavailable: timeout", f.clock.Now())
	f.ledger.add(task)
	return task
}

func TestCompensationCycleDeletesIdentity(t *testing.T) {
	f := newFixture()
	task := leak(f)

	report, err := f.service.RunCompensationCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Selected: 1, Done: 1}, report)

	saved := f.ledger.get(task.ID)
	assert.Equal(t, domain.CompensationDone, saved.Status)
	assert.Nil(t, saved.LastError)
	assert.Zero(t, saved.Attempts)
	assert.False(t, f.gateway.exists(task.KCUserID))
}

func TestCompensationCycleTreatsMissingIdentityAsDone(t *testing.T) {
	f := newFixture()
	task := domain.NewCompensationTask(uuid.New(), "gone@example.com", "", f.clock.Now())
	f.ledger.add(task)

	report, err := f.service.RunCompensationCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Done)
	assert.Equal(t, domain.CompensationDone, f.ledger.get(task.ID).Status)
}

func TestCompensationCycleSchedulesRetry(t *testing.T) {
	f := newFixture()
	task := leak(f)
	f.gateway.deleteErr = func(uuid.UUID) error { return unavailable("503 from admin api") }

	report, err := f.service.RunCompensationCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Retrying)

	saved := f.ledger.get(task.ID)
	assert.Equal(t, domain.CompensationPending, saved.Status)
	assert.Equal(t, 1, saved.Attempts)
	assert.Equal(t, f.clock.Now().Add(2*time.Minute+fixedJitter), saved.NextRetryAt)
	require.NotNil(t, saved.LastError)
	assert.True(t, strings.HasPrefix(*saved.LastError, "IdentityProviderUnavailable: "))

	// Not due yet.
	report, err = f.service.RunCompensationCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Selected)
}

func TestCompensationCycleExhaustsAfterMaxAttempts(t *testing.T) {
	f := newFixture()
	task := leak(f)
	f.gateway.deleteErr = func(uuid.UUID) error { return unavailable("down") }
	maxAttempts := DefaultCompensationPolicy().MaxAttempts

	for i := 1; i <= maxAttempts; i++ {
		report, err := f.service.RunCompensationCycle(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, report.Selected, "attempt %d", i)
		f.clock.Advance(2 * time.Hour)
	}

	saved := f.ledger.get(task.ID)
	assert.Equal(t, domain.CompensationFailed, saved.Status)
	assert.Equal(t, maxAttempts, saved.Attempts)
	assert.True(t, saved.Terminal())

	require.Len(t, f.ledger.events, 1)
	event := f.ledger.events[0]
	assert.Equal(t, EventIdentityCompensationExhausted, event.EventType)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, task.KCUserID.String(), payload["kc_user_id"])
	assert.EqualValues(t, maxAttempts, payload["attempts"])

	// Terminal tasks are never selected again, even once the provider recovers.
	f.gateway.deleteErr = nil
	f.clock.Advance(24 * time.Hour)
	report, err := f.service.RunCompensationCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Selected)
	assert.True(t, f.gateway.exists(task.KCUserID))
}

func TestCompensationCycleLogsExhaustedEventFailure(t *testing.T) {
	var logs bytes.Buffer
	prevLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	prevBuild := buildExhaustedEvent
	buildExhaustedEvent = func(domain.CompensationTask, time.Time) (ports.OutboxEvent, error) {
		return ports.OutboxEvent{}, errors.New("payload encoding failed")
	}
	t.Cleanup(func() {
		slog.SetDefault(prevLogger)
		buildExhaustedEvent = prevBuild
	})

	f := newFixture()
	task := leak(f)
	task.Attempts = DefaultCompensationPolicy().MaxAttempts - 1
	f.ledger.add(task)
	f.gateway.deleteErr = func(uuid.UUID) error { return unavailable("down") }

	report, err := f.service.RunCompensationCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Exhausted)
	assert.Equal(t, domain.CompensationFailed, f.ledger.get(task.ID).Status)
	assert.Empty(t, f.ledger.events)
	assert.Contains(t, logs.String(), "compensation exhausted event build failed")
	assert.Contains(t, logs.String(), "payload encoding failed")
	assert.Contains(t, logs.String(), task.KCUserID.String())
}

func TestCompensationCycleContinuesAfterSaveFailure(t *testing.T) {
	f := newFixture()
	first := leak(f)
	second := leak(f)
	f.ledger.saveErr = func(task domain.CompensationTask) error {
		if task.ID == first.ID {
			return errors.New("serialization failure")
		}
		return nil
	}

	report, err := f.service.RunCompensationCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Selected)
	assert.Equal(t, 1, report.SaveFailed)
	assert.Equal(t, 1, report.Done)

	assert.Equal(t, domain.CompensationPending, f.ledger.get(first.ID).Status)
	assert.Equal(t, domain.CompensationDone, f.ledger.get(second.ID).Status)

	// The unsaved task is retried next cycle; its identity is already gone.
	f.ledger.saveErr = nil
	report, err = f.service.RunCompensationCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Done)
	assert.Equal(t, domain.CompensationDone, f.ledger.get(first.ID).Status)
}

func TestCompensationCycleRespectsBatchSize(t *testing.T) {
	f := newFixture()
	for i := 0; i < 30; i++ {
		leak(f)
	}

	report, err := f.service.RunCompensationCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultCompensationPolicy().BatchSize, report.Selected)
	assert.Equal(t, 5, f.gateway.liveCount())
}

func TestCompensationCycleSelectFailure(t *testing.T) {
	f := newFixture()
	f.ledger.selectErr = errors.New("connection refused")

	_, err := f.service.RunCompensationCycle(context.Background())
	require.Error(t, err)
}

func TestFormatTaskErrorIsBounded(t *testing.T) {
	long := unavailable(strings.Repeat("é", 2000))
	got := formatTaskError(long)
	assert.True(t, strings.HasPrefix(got, "IdentityProviderUnavailable: "))
	assert.Equal(t, domain.MaxLastErrorLength, len([]rune(got)))

	assert.Equal(t, "errors.errorString: plain", formatTaskError(errors.New("plain")))
}
