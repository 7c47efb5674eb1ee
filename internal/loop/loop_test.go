package loop

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAndRun(t *testing.T) {
	l := New(4, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 2)
	require.NoError(t, l.Submit(func(context.Context) { done <- 1 }))
	require.NoError(t, l.Submit(func(context.Context) { done <- 2 }))

	go l.Run(ctx)

	assert.Equal(t, 1, <-done)
	assert.Equal(t, 2, <-done)
}

func TestSubmitFull(t *testing.T) {
	l := New(1, zerolog.Nop())
	require.NoError(t, l.Submit(func(context.Context) {}))
	assert.ErrorIs(t, l.Submit(func(context.Context) {}), ErrFull)
}

func TestSubmitAfterClose(t *testing.T) {
	l := New(1, zerolog.Nop())
	l.Close()
	l.Close()
	assert.ErrorIs(t, l.Submit(func(context.Context) {}), ErrClosed)
}

func TestExecRecoversPanic(t *testing.T) {
	l := New(1, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	after := make(chan struct{})
	require.NoError(t, l.Submit(func(context.Context) { panic("boom") }))
	go l.Run(ctx)

	require.Eventually(t, func() bool {
		return l.Submit(func(context.Context) { close(after) }) == nil
	}, time.Second, 10*time.Millisecond)

	select {
	case <-after:
	case <-time.After(time.Second):
		t.Fatal("loop stopped after a panicking task")
	}
}
