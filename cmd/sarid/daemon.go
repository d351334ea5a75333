package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sari-dev/sari/internal/daemon"
	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/gateway"
	"github.com/sari-dev/sari/internal/ingest"
	"github.com/sari-dev/sari/internal/registry"
	"github.com/sari-dev/sari/internal/types"
	"github.com/sari-dev/sari/internal/ui"
	"github.com/sari-dev/sari/internal/version"
)

func daemonCommand() *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "Start, stop, or inspect the always-on workspace daemon",
		Subcommands: []*cli.Command{
			{Name: "start", Usage: "Start (or attach to) the daemon for this workspace", Action: runDaemonStart},
			{Name: "stop", Usage: "Stop the daemon bound to this workspace", Action: runDaemonStop},
			{Name: "status", Usage: "Report the registry binding for this workspace", Action: runDaemonStatus},
		},
	}
}

// runDaemonStart implements §4.7's singleton/blue-green startup: it
// opens a backend on an ephemeral port, hands that address to a
// Controller, and either attaches to an already-healthy incumbent (and
// exits) or becomes the active daemon and runs the ingest pipeline
// until signaled to stop.
func runDaemonStart(c *cli.Context) error {
	gf := globalsFrom(c)
	cfg, err := loadWorkspaceConfig(gf)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	if err := rt.upsertSelf(); err != nil {
		rt.Close()
		return err
	}

	backend := gateway.NewBackend(rt.registry, "127.0.0.1:0")
	if err := backend.Start(); err != nil {
		rt.Close()
		return err
	}

	self, err := parseEndpoint(backend.Addr())
	if err != nil {
		backend.Shutdown(context.Background())
		rt.Close()
		return err
	}

	hostReg, err := openHostRegistry()
	if err != nil {
		backend.Shutdown(context.Background())
		rt.Close()
		return err
	}

	ctrl := daemon.NewController(hostReg, registry.NewBootID(), version.Version, cfg.Project.Root)

	startCtx, startCancel := context.WithTimeout(context.Background(), 10*time.Second)
	attached, err := ctrl.Start(startCtx, self, gateway.HTTPHealthProbe)
	startCancel()
	if err != nil {
		backend.Shutdown(context.Background())
		rt.Close()
		return err
	}
	if attached {
		ui.Infof("a healthy daemon already serves %s; not starting a second one", cfg.Project.Root)
		backend.Shutdown(context.Background())
		return rt.Close()
	}

	gw, gwOwned := maybeStartGateway(hostReg)
	if gwOwned {
		ui.Infof("gateway listening on %s", gw.Addr())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Every live /invoke request holds a lease; once the last one drops,
	// idle_sec of silence trips the suicide state machine and this
	// process asks itself to shut down exactly like a SIGTERM would.
	idleCh := make(chan struct{}, 1)
	leaseCtrl := daemon.NewLeaseController(
		time.Duration(cfg.Daemon.IdleSec)*time.Second,
		backend.InFlight,
		func() {
			select {
			case idleCh <- struct{}{}:
			default:
			}
		},
	)
	backend.SetActivityHooks(
		func(id string) { leaseCtrl.Submit(daemon.Event{Kind: daemon.EventLeaseIssue, LeaseID: id}) },
		func(id string) { leaseCtrl.Submit(daemon.Event{Kind: daemon.EventLeaseRevoke, LeaseID: id}) },
	)
	go leaseCtrl.Run(ctx)

	pool := ingest.NewWorkerPool(cfg, rt.orch)
	go func() {
		if err := pool.Run(ctx); err != nil {
			uiWarnf("worker pool stopped: %v", err)
		}
	}()
	go func() {
		if err := rt.orch.ScanRoot(ctx, rt.rootID, cfg.Project.Root); err != nil {
			uiWarnf("initial scan failed: %v", err)
		}
	}()

	var bus *ingest.EventBus
	if cfg.Ingest.WatchMode {
		bus, err = ingest.NewEventBus(cfg, cfg.Project.Root, daemonFileEventHandler(rt), daemonRescanHandler(ctx, rt))
		if err != nil {
			uiWarnf("filesystem watcher unavailable: %v", err)
		} else if err := bus.Start(ctx); err != nil {
			uiWarnf("filesystem watcher failed to start: %v", err)
			bus = nil
		}
	}

	heartbeat := time.NewTicker(time.Duration(cfg.Daemon.HeartbeatMs) * time.Millisecond)
	defer heartbeat.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				if err := ctrl.Heartbeat(self); err != nil {
					uiWarnf("heartbeat failed: %v", err)
				}
			}
		}
	}()

	ui.Successf("daemon serving %s on %s (pid %d)", cfg.Project.Root, self.String(), os.Getpid())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		ui.Info("shutting down")
	case <-idleCh:
		ui.Infof("idle for %ds with no live requests; shutting down", cfg.Daemon.IdleSec)
	}
	cancel()
	if bus != nil {
		bus.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Daemon.DrainTimeoutSec)*time.Second)
	defer shutdownCancel()
	if err := backend.Shutdown(shutdownCtx); err != nil {
		uiWarnf("backend shutdown: %v", err)
	}
	if gwOwned {
		if err := gw.Shutdown(shutdownCtx); err != nil {
			uiWarnf("gateway shutdown: %v", err)
		}
	}
	return rt.Close()
}

// maybeStartGateway binds the fixed, host-wide gateway ingress
// (defaultGatewayEndpoint) if no process on the host holds it yet. Only
// one daemon process per host ends up owning the Gateway; every other
// daemon process finds the port already taken and simply skips it,
// relying on the owner's Gateway to proxy requests for its workspace
// too once bound in the registry.
func maybeStartGateway(reg *registry.Registry) (*gateway.Gateway, bool) {
	gw := gateway.NewGateway(reg, defaultGatewayEndpoint().String())
	if err := gw.Start(); err != nil {
		return nil, false
	}
	return gw, true
}

// daemonFileEventHandler adapts a debounced ingest.EventBus callback
// into an Orchestrator.Queue push: a Remove event becomes a deletion
// FileItem (Orchestrator.ProcessOne's IsExcluded branch), anything else
// an ordinary re-index of the file's current on-disk state.
func daemonFileEventHandler(rt *runtime) func(path string, ev ingest.EventType) {
	return func(path string, ev ingest.EventType) {
		rel, err := filepath.Rel(rt.cfg.Project.Root, path)
		if err != nil {
			return
		}
		rel = filepath.ToSlash(rel)

		item := ingest.FileItem{
			Root:    rt.cfg.Project.Root,
			RootID:  rt.rootID,
			AbsPath: path,
			RelPath: rel,
			Repo:    types.Repo(rel),
			Ext:     filepath.Ext(rel),
		}

		if ev == ingest.EventRemove {
			item.IsExcluded = true
		} else {
			info, err := os.Stat(path)
			if err != nil {
				return
			}
			item.Size = info.Size()
			item.MTime = info.ModTime()
		}
		rt.orch.Queue().Push(item)
	}
}

// daemonRescanHandler collapses a `.git` burst (checkout, pull, branch
// switch) into one full ScanRoot, per §4.4.
func daemonRescanHandler(ctx context.Context, rt *runtime) func() {
	return func() {
		if err := rt.orch.ScanRoot(ctx, rt.rootID, rt.cfg.Project.Root); err != nil {
			uiWarnf("git-triggered rescan failed: %v", err)
		}
	}
}

func parseEndpoint(addr string) (registry.Endpoint, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return registry.Endpoint{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return registry.Endpoint{}, fmt.Errorf("invalid backend port %q: %w", portStr, err)
	}
	return registry.Endpoint{Host: host, Port: port}, nil
}

// runDaemonStop resolves the daemon currently bound to this workspace
// in the host registry and sends it SIGTERM, letting its own
// LeaseController-driven shutdown (or the signal handler in
// runDaemonStart) drain and exit.
func runDaemonStop(c *cli.Context) error {
	gf := globalsFrom(c)
	hostReg, err := openHostRegistry()
	if err != nil {
		return err
	}

	_, d, ok, err := hostReg.ResolveWorkspaceFull(gf.root)
	if err != nil {
		return err
	}
	if !ok {
		return sarierrors.New(sarierrors.NotIndexed, fmt.Sprintf("no daemon bound to %s", gf.root)).
			WithClientAction(sarierrors.ActionRunDoctor)
	}

	proc, err := os.FindProcess(d.PID)
	if err != nil {
		return fmt.Errorf("find process %d: %w", d.PID, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal process %d: %w", d.PID, err)
	}
	ui.Successf("sent SIGTERM to daemon pid %d", d.PID)
	return nil
}

// runDaemonStatus prints the registry's current binding for this
// workspace without requiring a live connection to the daemon itself.
func runDaemonStatus(c *cli.Context) error {
	gf := globalsFrom(c)
	hostReg, err := openHostRegistry()
	if err != nil {
		return err
	}

	_, d, ok, err := hostReg.ResolveWorkspaceFull(gf.root)
	if err != nil {
		return err
	}
	if !ok {
		ui.Warningf("no daemon bound to %s", gf.root)
		return nil
	}

	ui.Header("Daemon status")
	fmt.Printf("%s %s\n", ui.Label("workspace:"), gf.root)
	fmt.Printf("%s %s\n", ui.Label("address:"), registry.Endpoint{Host: d.Host, Port: d.Port}.String())
	fmt.Printf("%s %d\n", ui.Label("pid:"), d.PID)
	fmt.Printf("%s %s\n", ui.Label("version:"), d.Version)
	fmt.Printf("%s %s\n", ui.Label("last seen:"), d.LastSeenTS.Format(time.RFC3339))
	fmt.Printf("%s %v\n", ui.Label("draining:"), d.Draining)
	return nil
}
