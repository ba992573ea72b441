package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"speechspy/internal/config"
	"speechspy/internal/eventbus"
	"speechspy/internal/storage"
	logx "speechspy/pkg/logx"
)

const auditWriteTimeout = 2 * time.Second

// recordEvents logs every bus event and, when audit is on, appends state
// changes to the store.
func (a *App) recordEvents(ctx context.Context, events <-chan eventbus.Event, audit bool) {
	log := a.log.With(logx.String("comp", "audit"))
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			log.Debug("event", logx.String("type", e.Type))
			if !audit {
				continue
			}
			if err := a.appendAudit(ctx, e); err != nil {
				log.Warn("audit append failed", logx.String("type", e.Type), logx.Err(err))
			}
		}
	}
}

func (a *App) appendAudit(ctx context.Context, e eventbus.Event) error {
	entry := storage.AuditEntry{At: e.Time, Instance: a.instance, Action: e.Type}
	if ch, ok := e.Data.(eventbus.StateChange); ok {
		entry.From = ch.From
		entry.To = ch.To
		entry.Target = ch.Target
		entry.Message = ch.Message
		entry.Error = ch.Err
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	return a.store.AppendAudit(wctx, entry)
}

// startAuditPrune schedules retention pruning on the configured cron spec.
func (a *App) startAuditPrune(cfg config.AuditConfig) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(time.Local),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	retention := cfg.RetentionOrDefault()
	spec := cfg.ScheduleOrDefault()
	if _, err := c.AddFunc(spec, func() { a.pruneAudit(retention) }); err != nil {
		return err
	}
	c.Start()
	a.cron = c
	a.log.Info("audit enabled",
		logx.String("comp", "audit"),
		logx.String("prune_schedule", spec),
		logx.Duration("retention", retention),
	)
	return nil
}

func (a *App) pruneAudit(retention time.Duration) {
	log := a.log.With(logx.String("comp", "audit"))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := a.store.PruneAudit(ctx, time.Now().Add(-retention))
	if err != nil {
		log.Warn("audit prune failed", logx.Err(err))
		return
	}
	log.Info("audit pruned", logx.Int64("removed", n))
}
