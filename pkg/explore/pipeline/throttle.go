package pipeline

import (
	"context"
	"time"

	"explore-state-be/pkg/explore/model"

	"github.com/coder/quartz"
)

// throttle forwards at most one emission per interval, always the latest.
// Live streams carry their whole buffer in every emission, so intermediate
// ones can be dropped. A pending emission is flushed when in closes.
func throttle(ctx context.Context, clock quartz.Clock, in <-chan model.DataQueryResponse, every time.Duration) <-chan model.DataQueryResponse {
	if every <= 0 {
		return in
	}

	out := make(chan model.DataQueryResponse)
	go func() {
		defer close(out)
		ticker := clock.NewTicker(every, "pipeline", "throttle")
		defer ticker.Stop()

		var pending *model.DataQueryResponse
		for {
			select {
			case resp, ok := <-in:
				if !ok {
					if pending != nil {
						forward(ctx, out, *pending)
					}
					return
				}
				pending = &resp
			case <-ticker.C:
				if pending == nil {
					continue
				}
				if !forward(ctx, out, *pending) {
					return
				}
				pending = nil
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func forward(ctx context.Context, out chan<- model.DataQueryResponse, resp model.DataQueryResponse) bool {
	select {
	case out <- resp:
		return true
	case <-ctx.Done():
		return false
	}
}
