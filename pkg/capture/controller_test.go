package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerKillClosesDone(t *testing.T) {
	controller := NewController(nil)
	assert.Equal(t, StateRunning, controller.State())

	select {
	case <-controller.Done():
		t.Fatal("done closed before kill")
	default:
	}

	controller.Kill("keypress", nil)
	controller.Kill("signal", nil)

	select {
	case <-controller.Done():
	case <-time.After(time.Second):
		t.Fatal("done not closed after kill")
	}
	assert.Equal(t, StateStopping, controller.State())

	timeline := controller.Timeline()
	require.Len(t, timeline, 2)
	assert.Equal(t, StateRunning, timeline[0].State)
	assert.Equal(t, StateStopping, timeline[1].State)
	assert.Equal(t, "keypress", timeline[1].Reason)
}

func TestControllerKillPropagatesError(t *testing.T) {
	controller := NewController(nil)
	customErr := errors.New("boom")

	done := make(chan error, 1)
	go func() {
		done <- controller.Wait(context.Background())
	}()

	controller.Kill("error", customErr)
	controller.Kill("error", errors.New("later"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, customErr)
	case <-time.After(time.Second):
		t.Fatal("controller wait did not unblock after kill")
	}
	assert.ErrorIs(t, controller.Err(), customErr)
}

func TestControllerWaitWithoutErrorReportsCanceled(t *testing.T) {
	controller := NewController(nil)
	controller.Kill("keypress", nil)
	assert.ErrorIs(t, controller.Wait(context.Background()), context.Canceled)
}

func TestControllerWaitRespectsContextCancellation(t *testing.T) {
	controller := NewController(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- controller.Wait(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("controller wait did not exit on cancellation")
	}
	assert.Equal(t, StateRunning, controller.State())
}
