package worker

import (
	"context"
	"sync"

	"github.com/spec-kit/portal-auth/internal/expiry"
	"github.com/spec-kit/portal-auth/internal/service"
)

// StartSessionWorkers registers audit handlers, runs restore so its session
// events are audited, then runs the expiry notifier in its own goroutine until
// ctx ends or the notifier is stopped. The returned function blocks until the
// notifier goroutine has exited.
func StartSessionWorkers(ctx context.Context, audit *service.SessionAudit, notifier *expiry.Notifier, restore func(context.Context)) (wait func()) {
	if audit != nil {
		audit.RegisterHandlers()
	}
	if restore != nil {
		restore(ctx)
	}

	var wg sync.WaitGroup
	if notifier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			notifier.Run(ctx)
		}()
	}
	return wg.Wait
}
