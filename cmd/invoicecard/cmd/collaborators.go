package cmd

import (
	"context"
	"fmt"

	"github.com/cardmill/invoicecard/internal/collab"
	"github.com/cardmill/invoicecard/internal/config"
	"github.com/cardmill/invoicecard/internal/store"
)

// collaborators bundles the optional Store/Audit/Readiness backends wired
// from cfg.Store, plus a close function releasing whichever were opened.
// A CLI run with no postgres_dsn/redis_addr configured gets the same
// no-op collab.NopStore/NopAudit the pipeline Builder defaults to.
type collaborators struct {
	store     collab.Store
	audit     collab.Audit
	readiness collab.Readiness
	close     func() error
}

// buildCollaborators opens the backends named in cfg.Store. It never
// blocks on a missing backend: an unset DSN/address just means that
// collaborator stays a no-op.
func buildCollaborators(ctx context.Context, cfg config.Config) (collaborators, error) {
	var probes []collab.Readiness
	var closers []func() error

	result := collaborators{store: collab.NopStore{}, audit: collab.NopAudit{}}

	if cfg.Store.PostgresDSN != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return collaborators{}, fmt.Errorf("cmd: open postgres store: %w", err)
		}
		result.store = pg
		probes = append(probes, pg)
		closers = append(closers, pg.Close)
	}

	if cfg.Store.RedisAddr != "" {
		ra := store.NewRedisAudit(cfg.Store.RedisAddr)
		result.audit = ra
		probes = append(probes, ra)
		closers = append(closers, ra.Close)
	}

	if len(probes) > 0 {
		result.readiness = multiReadiness(probes)
	}

	result.close = func() error {
		var firstErr error
		for _, c := range closers {
			if err := c(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	return result, nil
}

// multiReadiness probes every backing collaborator and is ready only when
// all of them are.
type multiReadiness []collab.Readiness

func (m multiReadiness) Probe(ctx context.Context) collab.ReadinessReport {
	report := collab.ReadinessReport{Ready: true}
	for _, p := range m {
		r := p.Probe(ctx)
		report.Components = append(report.Components, r.Components...)
		if !r.Ready {
			report.Ready = false
		}
	}
	return report
}
