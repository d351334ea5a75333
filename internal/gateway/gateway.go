package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"runtime"
	"sync"
	"time"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/registry"
)

// workspaceRootParam is the query param a client uses to select which
// workspace's daemon a request should be routed to, per §6's fixed
// ingress: one gateway address, many workspaces behind it.
const workspaceRootParam = "workspace_root"

// Gateway is the fixed HTTP ingress of §4.7: it binds one address for
// the life of the host and reverse-proxies each request to whichever
// daemon process is currently active for the requested workspace,
// transparently following a blue/green switch.
type Gateway struct {
	reg       *registry.Registry
	addr      string
	listener  net.Listener
	server    *http.Server
	startTime time.Time

	mu       sync.RWMutex
	proxies  map[string]*httputil.ReverseProxy // keyed by backend host:port

	shutdownChan chan struct{}
	wg           sync.WaitGroup
}

// NewGateway builds a Gateway that will listen on addr (host:port) and
// resolve backends through reg.
func NewGateway(reg *registry.Registry, addr string) *Gateway {
	return &Gateway{
		reg:          reg,
		addr:         addr,
		startTime:    time.Now(),
		proxies:      make(map[string]*httputil.ReverseProxy),
		shutdownChan: make(chan struct{}),
	}
}

// Start binds the fixed ingress address and begins serving.
func (g *Gateway) Start() error {
	listener, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("gateway: failed to bind %s: %w", g.addr, err)
	}
	g.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", g.handlePing)
	mux.HandleFunc("/", g.handleProxy)

	g.server = &http.Server{Handler: mux}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			_ = err // the caller's health probe surfaces failures; nothing else to report to
		}
	}()

	return nil
}

// Addr returns the bound address (useful when addr was ":0").
func (g *Gateway) Addr() string {
	if g.listener == nil {
		return g.addr
	}
	return g.listener.Addr().String()
}

// handlePing answers the gateway's own liveness, independent of any
// workspace's backend daemon.
func (g *Gateway) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"uptime_seconds":%f}`, time.Since(g.startTime).Seconds())
}

// handleProxy resolves the request's workspace_root to the currently
// active backend and forwards the request unmodified. A request naming
// no workspace_root is INVALID_ARGS (client_action fix_args); one that
// resolves to no live daemon is NOT_INDEXED (client_action run_doctor).
func (g *Gateway) handleProxy(w http.ResponseWriter, r *http.Request) {
	ws := r.URL.Query().Get(workspaceRootParam)
	if ws == "" {
		writeGatewayError(w, http.StatusBadRequest, sarierrors.New(sarierrors.InvalidArgs,
			"workspace_root query parameter is required").WithClientAction(sarierrors.ActionFixArgs))
		return
	}

	d, ok, err := g.reg.ResolveWorkspace(ws)
	if err != nil {
		writeGatewayError(w, http.StatusInternalServerError, sarierrors.Wrap(sarierrors.IOError, "registry lookup failed", err))
		return
	}
	if !ok {
		writeGatewayError(w, http.StatusServiceUnavailable, sarierrors.New(sarierrors.NotIndexed,
			fmt.Sprintf("no active daemon bound to workspace %s", ws)).WithClientAction(sarierrors.ActionRunDoctor))
		return
	}

	backend := net.JoinHostPort(d.Host, fmt.Sprintf("%d", d.Port))
	proxy := g.proxyFor(backend)
	proxy.ServeHTTP(w, r)
}

// proxyFor returns (creating and caching if needed) the reverse proxy
// for one backend address. Caching avoids rebuilding a director closure
// per request while still picking up a changed backend per workspace
// the moment the registry reflects a switch.
func (g *Gateway) proxyFor(backend string) *httputil.ReverseProxy {
	g.mu.RLock()
	p, ok := g.proxies[backend]
	g.mu.RUnlock()
	if ok {
		return p
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.proxies[backend]; ok {
		return p
	}
	target := &url.URL{Scheme: "http", Host: backend}
	p = httputil.NewSingleHostReverseProxy(target)
	g.proxies[backend] = p
	return p
}

func writeGatewayError(w http.ResponseWriter, status int, e *sarierrors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"code":%q,"message":%q}}`, e.Code, e.Message)
}

// Wait blocks until Shutdown closes shutdownChan.
func (g *Gateway) Wait() {
	<-g.shutdownChan
}

// Shutdown gracefully stops the HTTP server, waiting for in-flight
// requests to drain before returning.
func (g *Gateway) Shutdown(ctx context.Context) error {
	select {
	case <-g.shutdownChan:
		return nil
	default:
		close(g.shutdownChan)
	}

	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("gateway: shutdown error: %w", err)
		}
	}
	g.wg.Wait()
	runtime.GC()
	return nil
}
