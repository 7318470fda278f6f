package delay

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTyper struct {
	calls atomic.Int32
	err   error
}

func (c *countingTyper) SendTyping(_ context.Context, _ snowflake.ID) error {
	c.calls.Add(1)
	return c.err
}

func TestRandom(t *testing.T) {
	for range 200 {
		d := Random(5, 15)
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.LessOrEqual(t, d, 15*time.Second)
		assert.Zero(t, d%time.Second)
	}
	assert.Equal(t, 3*time.Second, Random(3, 3))
	assert.Equal(t, 7*time.Second, Random(7, 2))
}

func TestWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Wait(ctx, 10, 20)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitZero(t *testing.T) {
	require.NoError(t, Wait(context.Background(), 0, 0))
}

func TestTypingDuration(t *testing.T) {
	for range 200 {
		// 100 chars at 50..100 cpm is 60..120 seconds before jitter
		d := TypingDuration(100, [2]int{50, 100})
		assert.GreaterOrEqual(t, d, time.Duration(0.8*60*float64(time.Second)))
		assert.LessOrEqual(t, d, time.Duration(1.2*120*float64(time.Second)))
	}
	assert.Zero(t, TypingDuration(0, DefaultTypingSpeed))
}

func TestSimulateTyping(t *testing.T) {
	typer := &countingTyper{}
	require.NoError(t, SimulateTyping(context.Background(), typer, 1, 10*time.Millisecond))
	assert.EqualValues(t, 1, typer.calls.Load())

	typer = &countingTyper{}
	require.NoError(t, SimulateTyping(context.Background(), typer, 1, 0))
	assert.EqualValues(t, 0, typer.calls.Load())
}

func TestSimulateTypingError(t *testing.T) {
	boom := errors.New("boom")
	typer := &countingTyper{err: boom}
	err := SimulateTyping(context.Background(), typer, 1, time.Second)
	require.ErrorIs(t, err, boom)
}

func TestSimulateTypingCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	typer := &countingTyper{}
	err := SimulateTyping(ctx, typer, 1, time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 1, typer.calls.Load())
}

func TestPacerZeroDelay(t *testing.T) {
	p := Pacer{}
	require.NoError(t, p.Delay(context.Background()))
	require.NoError(t, p.Type(context.Background(), &countingTyper{}, 1, 0))
}
