package zoo

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Policy decides whether a bot answers a message it is allowed to answer.
type Policy interface {
	ShouldRespond() bool
	// IntroductionNote is an extra introduction line, empty for none.
	IntroductionNote() string
}

// Always answers every message.
type Always struct{}

func (Always) ShouldRespond() bool      { return true }
func (Always) IntroductionNote() string { return "" }

// Probability answers a message with probability P.
type Probability struct {
	P    float64
	rand func() float64
}

func NewProbability(p float64) Probability {
	return Probability{P: p, rand: rand.Float64}
}

func (p Probability) ShouldRespond() bool {
	r := p.rand
	if r == nil {
		r = rand.Float64
	}
	return r() < p.P
}

func (p Probability) IntroductionNote() string {
	return fmt.Sprintf("応答確率: %d%%", int(math.Round(p.P*100)))
}
