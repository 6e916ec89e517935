package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/serp1412/coinfeed/internal/infra"
	"github.com/serp1412/coinfeed/internal/provider"
)

func (e *Engine) startSupervisors(ctx context.Context) {
	e.setupMu.Lock()
	defer e.setupMu.Unlock()

	if e.supStarted {
		return
	}
	e.supStarted = true

	ctx, cancel := context.WithCancel(ctx)
	e.supCancel = cancel

	for _, p := range e.pushes {
		e.supWG.Add(1)
		go e.supervise(ctx, p)
	}
}

// supervise redials p whenever its receive loop ends, waiting per the backoff
// schedule, and replays every subscription made so far.
func (e *Engine) supervise(ctx context.Context, p provider.PushAdapter) {
	defer e.supWG.Done()

	retry := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.Done():
		}

		if p.State() != infra.StateDisconnected {
			// Someone else is already dialing; let that attempt finish.
			if !sleepCtx(ctx, e.backoff.Delay(0)) {
				return
			}
			continue
		}

		delay := e.backoff.Delay(retry)
		slog.Warn("Push adapter disconnected, reconnecting",
			slog.String("source", p.Name()),
			slog.Int("retry", retry),
			slog.Duration("delay", delay))

		if !sleepCtx(ctx, delay) {
			return
		}

		if err := p.Connect(ctx); err != nil {
			retry++
			slog.Warn("Reconnect failed", slog.String("source", p.Name()), slog.Any("error", err))
			continue
		}
		retry = 0

		p.OnUpdate(e.handlePush)
		symbols := e.Subscribed()
		for _, s := range symbols {
			if err := p.Subscribe(s); err != nil {
				slog.Debug("Resubscribe failed", slog.String("source", p.Name()), slog.String("symbol", s), slog.Any("error", err))
			}
		}
		slog.Info("Push adapter reconnected", slog.String("source", p.Name()), slog.Int("symbols", len(symbols)))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
