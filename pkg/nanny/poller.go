package nanny

import (
	"time"

	"github.com/bft-labs/cachenanny/pkg/loop"
)

// poller owns the recurring update timer.
type poller struct {
	sched    loop.Scheduler
	tick     func()
	timer    loop.Timer
	interval time.Duration
}

func newPoller(sched loop.Scheduler, tick func()) *poller {
	return &poller{sched: sched, tick: tick}
}

// start re-arms the timer at interval, stopping any armed timer first.
func (p *poller) start(interval time.Duration) {
	p.stop()
	p.timer = p.sched.Every(interval, p.tick)
	p.interval = interval
}

// stop cancels the timer. The handle is cleared before Stop is called so a
// re-entrant stop from inside a tick sees the poller as stopped.
func (p *poller) stop() {
	if p.timer == nil {
		return
	}
	t := p.timer
	p.timer = nil
	p.interval = 0
	t.Stop()
}

func (p *poller) running() bool {
	return p.timer != nil
}
