package delay

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Discord shows a typing indicator for about ten seconds.
const typingRefresh = 9500 * time.Millisecond

// DefaultTypingSpeed is the typing speed range in characters per minute.
var DefaultTypingSpeed = [2]int{50, 100}

type Typer interface {
	SendTyping(ctx context.Context, channelID snowflake.ID) error
}

// Random returns a whole number of seconds in [minSeconds, maxSeconds].
func Random(minSeconds int, maxSeconds int) time.Duration {
	if maxSeconds <= minSeconds {
		return time.Duration(minSeconds) * time.Second
	}
	return time.Duration(minSeconds+rand.IntN(maxSeconds-minSeconds+1)) * time.Second
}

// Wait sleeps for Random(minSeconds, maxSeconds) or until ctx is done.
func Wait(ctx context.Context, minSeconds int, maxSeconds int) error {
	return sleep(ctx, Random(minSeconds, maxSeconds))
}

// TypingDuration estimates how long a person typing at a speed drawn from
// speed (characters per minute) needs for length characters, with ±20% jitter.
func TypingDuration(length int, speed [2]int) time.Duration {
	lo, hi := speed[0], speed[1]
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo <= 0 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	charsPerSecond := float64(lo+rand.IntN(hi-lo+1)) / 60
	seconds := float64(length) / charsPerSecond * (0.8 + rand.Float64()*0.4)
	return time.Duration(seconds * float64(time.Second))
}

// SimulateTyping keeps the typing indicator in channelID alive for d.
func SimulateTyping(ctx context.Context, typer Typer, channelID snowflake.ID, d time.Duration) error {
	for remaining := d; remaining > 0; remaining -= typingRefresh {
		if err := typer.SendTyping(ctx, channelID); err != nil {
			return err
		}
		if err := sleep(ctx, min(remaining, typingRefresh)); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pacer makes a bot answer at a human pace.
type Pacer struct {
	MinSeconds  int
	MaxSeconds  int
	TypingSpeed [2]int
}

func (p Pacer) Delay(ctx context.Context) error {
	return Wait(ctx, p.MinSeconds, p.MaxSeconds)
}

func (p Pacer) Type(ctx context.Context, typer Typer, channelID snowflake.ID, length int) error {
	speed := p.TypingSpeed
	if speed == [2]int{} {
		speed = DefaultTypingSpeed
	}
	return SimulateTyping(ctx, typer, channelID, TypingDuration(length, speed))
}
