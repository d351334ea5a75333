package daemon

import (
	"context"
	"fmt"
	"os"
	"time"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/registry"
	"github.com/sari-dev/sari/internal/types"
)

// HealthProbe checks whether the daemon listening at ep is healthy.
// The gateway supplies the real implementation (an HTTP /ping call);
// tests supply a stub.
type HealthProbe func(ctx context.Context, ep registry.Endpoint) error

// Controller owns the singleton-startup and blue/green upgrade logic of
// §4.7, backed by the registry's generation-gated deployment record.
type Controller struct {
	reg       *registry.Registry
	bootID    string
	version   string
	workspace string
	startTS   time.Time
}

// NewController builds a Controller for one daemon process. bootID
// should come from registry.NewBootID; workspace is the canonical
// workspace path this daemon serves.
func NewController(reg *registry.Registry, bootID, version, workspace string) *Controller {
	return &Controller{reg: reg, bootID: bootID, version: version, workspace: workspace, startTS: time.Now()}
}

// Start implements the singleton invariant: it either becomes the sole
// daemon for the workspace, attaches to an existing healthy one of the
// same version, or — on version mismatch or a draining incumbent —
// begins a blue/green replacement. A healthy same-version incumbent
// that the caller cannot attach to (it's a foreign process, not us)
// means the caller should proxy rather than bind its own ingress.
func (c *Controller) Start(ctx context.Context, self registry.Endpoint, probe HealthProbe) (attach bool, err error) {
	bootID, d, ok, err := c.reg.ResolveWorkspaceFull(c.workspace)
	if err != nil {
		return false, err
	}

	if !ok {
		return false, c.claimFresh(self)
	}

	healthErr := probe(ctx, registry.Endpoint{Host: d.Host, Port: d.Port})
	switch {
	case healthErr == nil && !d.Draining && d.Version == c.version:
		return true, nil
	case d.Version != c.version || d.Draining:
		return false, c.beginUpgrade(ctx, bootID, self, probe)
	default:
		return false, sarierrors.New(sarierrors.ErrDaemonSingletonViolation,
			fmt.Sprintf("existing daemon for workspace %s is unhealthy and same-version; refusing automatic replacement", c.workspace)).
			WithClientAction(sarierrors.ActionRunDoctor)
	}
}

func (c *Controller) claimFresh(self registry.Endpoint) error {
	if err := c.reg.Heartbeat(c.bootID, types.RegistryDaemon{
		Host: self.Host, Port: self.Port, PID: os.Getpid(), Version: c.version, StartTS: c.startTS,
	}); err != nil {
		return err
	}
	return c.reg.BindWorkspace(c.workspace, types.RegistryWorkspace{
		BootID: c.bootID, HTTPHost: self.Host, HTTPPort: self.Port,
	})
}

// beginUpgrade runs the candidate half of the blue/green sequence:
// starting -> ready (health probe passes) -> switched (workspace
// rebound to the candidate, old daemon flagged draining).
func (c *Controller) beginUpgrade(ctx context.Context, oldBootID string, candidate registry.Endpoint, probe HealthProbe) error {
	recordUpgradeStarted()
	gen, err := c.reg.BeginDeploy(c.bootID)
	if err != nil {
		return err
	}

	if err := c.reg.Heartbeat(c.bootID, types.RegistryDaemon{
		Host: candidate.Host, Port: candidate.Port, PID: os.Getpid(), Version: c.version, StartTS: c.startTS,
	}); err != nil {
		return err
	}

	if err := probe(ctx, candidate); err != nil {
		return sarierrors.Wrap(sarierrors.ErrDaemonSingletonViolation, "candidate failed health probe", err)
	}

	if err := c.reg.MarkReady(gen); err != nil {
		return err
	}
	if err := c.reg.SwitchActive(gen); err != nil {
		return err
	}
	if err := c.reg.BindWorkspace(c.workspace, types.RegistryWorkspace{
		BootID: c.bootID, HTTPHost: candidate.Host, HTTPPort: candidate.Port,
	}); err != nil {
		return err
	}
	recordUpgradeSucceeded()
	if oldBootID != "" {
		return c.reg.SetDraining(oldBootID, true)
	}
	return nil
}

// RecordHealthFailure reports one post-switch health failure for
// generation gen. After strikeThreshold consecutive failures it rolls
// the deployment back, restoring the previous active daemon.
func (c *Controller) RecordHealthFailure(gen uint64, strikeThreshold int) (bool, error) {
	recordHealthFailure()
	rolledBack, err := c.reg.RecordHealthFailure(gen, strikeThreshold)
	if rolledBack {
		recordUpgradeRolledBack()
	}
	return rolledBack, err
}

// CompleteRollback settles a rolled-back deployment to idle.
func (c *Controller) CompleteRollback(gen uint64) error {
	return c.reg.CompleteRollback(gen)
}

// FinishDrain settles a successful switch to idle once the old daemon
// has drained its leases and stopped (§4.7 "Drain timeout").
func (c *Controller) FinishDrain(gen uint64) error {
	return c.reg.FinishSwitch(gen)
}

// Heartbeat refreshes this daemon's own registry entry; the caller
// drives the cadence (config.Daemon.HeartbeatMs).
func (c *Controller) Heartbeat(self registry.Endpoint) error {
	return c.reg.Heartbeat(c.bootID, types.RegistryDaemon{
		Host: self.Host, Port: self.Port, PID: os.Getpid(), Version: c.version, StartTS: c.startTS,
	})
}

// BootID returns this controller's daemon identity.
func (c *Controller) BootID() string { return c.bootID }
