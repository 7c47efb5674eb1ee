package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppRunsUpdatesAndTasksOnOneGoroutine(t *testing.T) {
	hs := newHarness(t)
	updates := make(chan tgbotapi.Update, 1)
	app := NewApp(hs.handler, hs.loop, updates, zerolog.Nop())

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(runCtx) }()

	ran := make(chan struct{})
	require.NoError(t, hs.loop.Submit(func(context.Context) { close(ran) }))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("loop task did not run")
	}

	updates <- command(42, "/start")
	assert.Eventually(t, func() bool { return hs.registry.HasJob(42) }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("app did not stop")
	}
}

func TestAppStopsWhenUpdatesClose(t *testing.T) {
	hs := newHarness(t)
	updates := make(chan tgbotapi.Update)
	close(updates)

	err := NewApp(hs.handler, hs.loop, updates, zerolog.Nop()).Run(context.Background())
	assert.ErrorIs(t, err, ErrUpdatesClosed)
}

func TestAppSurvivesHandlerPanic(t *testing.T) {
	hs := newHarness(t)
	hs.handler.Store = nil // any update touching storage panics
	updates := make(chan tgbotapi.Update, 2)
	updates <- command(42, "/start")
	close(updates)

	err := NewApp(hs.handler, hs.loop, updates, zerolog.Nop()).Run(context.Background())
	assert.ErrorIs(t, err, ErrUpdatesClosed)
}
