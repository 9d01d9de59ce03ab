package system

import (
	"strconv"
	"time"
)

// Phase defines execution ordering within a single host tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain async completions
	PhasePreUpdate               // 1: dispatch last tick's events
	PhaseUpdate                  // 2: script and game logic
	PhasePostUpdate              // 3: hot reload, bookkeeping
	PhaseCleanup                 // 4: destroy queued objects, collect garbage

	phaseCount
)

var phaseNames = [phaseCount]string{"input", "pre_update", "update", "post_update", "cleanup"}

func (p Phase) String() string {
	if p < 0 || p >= phaseCount {
		return "phase(" + strconv.Itoa(int(p)) + ")"
	}
	return phaseNames[p]
}

// System is the interface every tick participant implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
