package urlsync

import (
	"sync"
	"time"

	"explore-state-be/internal/pkg/logger"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/orchestrator"

	"github.com/coder/quartz"
)

const (
	outboundModule  = "URLSYNC"
	DefaultDebounce = 200 * time.Millisecond
)

// outboundTransitions are the transitions after which the address bar may
// be stale.
var outboundTransitions = map[model.Transition]bool{
	model.TransitionPaneOpened:       true,
	model.TransitionPaneClosed:       true,
	model.TransitionRunStarted:       true,
	model.TransitionRangeChanged:     true,
	model.TransitionQueriesCommitted: true,
}

type OutboundOptions struct {
	OrgID    int64
	Debounce time.Duration
	Clock    quartz.Clock
	Logger   logger.ILogger
}

// Outbound writes pane state to the address bar, at most once per debounce
// window. The first write replaces the current entry; later ones push.
type Outbound struct {
	orch     *orchestrator.Orchestrator
	location Location
	orgID    int64
	debounce time.Duration
	clock    quartz.Clock
	logger   logger.ILogger

	mu          sync.Mutex
	timer       *quartz.Timer
	written     bool
	pending     bool
	replaceNext bool
	stopped     bool
	unsubscribe func()
}

func NewOutbound(orch *orchestrator.Orchestrator, location Location, opts OutboundOptions) *Outbound {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	out := &Outbound{
		orch:     orch,
		location: location,
		orgID:    opts.OrgID,
		debounce: opts.Debounce,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	out.unsubscribe = orch.Subscribe(func(t model.Transition, _ string) {
		if outboundTransitions[t] {
			out.schedule()
		}
	})
	return out
}

// ReplaceNext makes the next write replace the current entry instead of
// pushing a new one.
func (o *Outbound) ReplaceNext() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replaceNext = true
}

// SettleNavigation drops the replace request of a navigation that left
// nothing to write, so the next user change pushes.
func (o *Outbound) SettleNavigation() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.pending {
		o.replaceNext = false
	}
}

// schedule runs from orchestrator listeners and must not block on the
// orchestrator.
func (o *Outbound) schedule() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	o.pending = true
	if o.timer == nil {
		o.timer = o.clock.AfterFunc(o.debounce, o.Flush, "urlsync", "debounce")
		return
	}
	o.timer.Reset(o.debounce, "urlsync", "debounce")
}

// Flush writes the current pane state when it differs from the address
// bar.
func (o *Outbound) Flush() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.pending = false
	o.mu.Unlock()

	state := FromPanes(o.orch.Panes(), o.orgID)
	current, _ := Parse(o.location.Current())
	if Equal(state, current) {
		o.mu.Lock()
		o.replaceNext = false
		o.mu.Unlock()
		return
	}
	raw, err := Encode(state)
	if err != nil {
		o.logger.Error(outboundModule, "Failed to encode address bar state", map[string]interface{}{"error": err.Error()})
		return
	}

	o.mu.Lock()
	replace := !o.written || o.replaceNext
	o.written = true
	o.replaceNext = false
	o.mu.Unlock()

	if replace {
		o.location.Replace(raw)
	} else {
		o.location.Push(raw)
	}
	o.logger.Debug(outboundModule, "Address bar updated", map[string]interface{}{
		"replace": replace,
		"panes":   len(state.Panes),
	})
}

// Stop detaches from the orchestrator and cancels a pending write.
func (o *Outbound) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	timer := o.timer
	o.mu.Unlock()

	o.unsubscribe()
	if timer != nil {
		timer.Stop("urlsync", "debounce")
	}
}
