package daemon

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/1broseidon/multiboxer/internal/journal"
)

// Service is a supervised long-running component.
type Service = suture.Service

// ServiceFunc adapts a blocking function to a supervised service.
type ServiceFunc struct {
	Name string
	Run  func(ctx context.Context) error
}

func (f ServiceFunc) Serve(ctx context.Context) error { return f.Run(ctx) }

func (f ServiceFunc) String() string { return f.Name }

// NewSupervisor returns the daemon's supervisor tree. Panicking or failing
// services are restarted with backoff; every supervisor event is logged.
func NewSupervisor(logger *slog.Logger, services ...Service) *suture.Supervisor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sup := suture.New("multiboxer", suture.Spec{
		EventHook: func(ev suture.Event) {
			logger.Warn("supervisor event", "event", ev.String())
		},
		FailureBackoff: 2 * time.Second,
		Timeout:        5 * time.Second,
	})
	for _, svc := range services {
		sup.Add(svc)
	}
	return sup
}

// Pruner periodically deletes journal records older than Retention.
type Pruner struct {
	Journal   *journal.Repository
	Retention time.Duration
	Every     time.Duration
	Logger    *slog.Logger
}

func (p *Pruner) String() string { return "journal-pruner" }

// Serve prunes once on start and then every p.Every until ctx is done.
func (p *Pruner) Serve(ctx context.Context) error {
	every := p.Every
	if every <= 0 {
		every = 24 * time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		p.prune()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pruner) prune() {
	if p.Journal == nil || p.Retention <= 0 {
		return
	}
	n, err := p.Journal.Prune(time.Now().Add(-p.Retention))
	if err != nil {
		if p.Logger != nil {
			p.Logger.Warn("journal prune failed", "error", err)
		}
		return
	}
	if n > 0 && p.Logger != nil {
		p.Logger.Info("journal pruned", "records", n)
	}
}
