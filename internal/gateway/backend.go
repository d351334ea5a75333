package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/tools"
)

// invokePath is the single dispatch route every tool call goes through,
// replacing a one-route-per-operation IndexServer table
// (search/symbol/fileinfo/reindex/...) with one route over Sari's
// already-unified Tool Registry.
const invokePath = "/invoke"

// Backend is the per-daemon HTTP surface a Gateway proxies to: one
// /ping route for HTTPHealthProbe, one POST /invoke route dispatching
// {tool, args} requests into a tools.Registry. It is the "self"
// endpoint a daemon.Controller registers in the registry for its
// workspace.
type Backend struct {
	reg       *tools.Registry
	addr      string
	listener  net.Listener
	server    *http.Server
	startTime time.Time

	shutdownChan chan struct{}
	wg           sync.WaitGroup

	inFlight  int32
	leaseSeq  uint64
	onLease   func(id string)
	onUnlease func(id string)
}

// SetActivityHooks registers callbacks fired around every /invoke call,
// so a daemon.LeaseController can treat live requests as leases for its
// idle-shutdown state machine (§4.7). Either argument may be nil.
func (b *Backend) SetActivityHooks(onLease, onUnlease func(id string)) {
	b.onLease = onLease
	b.onUnlease = onUnlease
}

// InFlight returns the number of /invoke requests currently executing,
// suitable as a daemon.LeaseController's inFlight func.
func (b *Backend) InFlight() int {
	return int(atomic.LoadInt32(&b.inFlight))
}

// NewBackend builds a Backend dispatching onto reg, listening on addr
// (host:port, typically "127.0.0.1:0" for an ephemeral blue/green
// candidate port).
func NewBackend(reg *tools.Registry, addr string) *Backend {
	return &Backend{
		reg:          reg,
		addr:         addr,
		startTime:    time.Now(),
		shutdownChan: make(chan struct{}),
	}
}

// Start binds addr and begins serving.
func (b *Backend) Start() error {
	listener, err := net.Listen("tcp", b.addr)
	if err != nil {
		return fmt.Errorf("backend: failed to bind %s: %w", b.addr, err)
	}
	b.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(httpPingPath, b.handlePing)
	mux.HandleFunc(invokePath, b.handleInvoke)

	b.server = &http.Server{Handler: mux}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			_ = err
		}
	}()

	return nil
}

// Addr returns the bound address (useful when addr was ":0").
func (b *Backend) Addr() string {
	if b.listener == nil {
		return b.addr
	}
	return b.listener.Addr().String()
}

func (b *Backend) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"uptime_seconds":%f}`, time.Since(b.startTime).Seconds())
}

// invokeRequest is the body of a POST /invoke call: the tool name, its
// arguments, and the desired response encoding (default "json").
type invokeRequest struct {
	Tool   string                 `json:"tool"`
	Args   map[string]interface{} `json:"args"`
	Format string                 `json:"format"`
}

// handleInvoke decodes an invokeRequest, runs it against the Registry,
// and writes the result as JSON or, when format=="pack", as the §6
// compact line-framed PACK form via tools.EncodePack.
func (b *Backend) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeGatewayError(w, http.StatusMethodNotAllowed, sarierrors.New(sarierrors.InvalidArgs, "invoke requires POST"))
		return
	}

	atomic.AddInt32(&b.inFlight, 1)
	leaseID := fmt.Sprintf("req-%d", atomic.AddUint64(&b.leaseSeq, 1))
	if b.onLease != nil {
		b.onLease(leaseID)
	}
	defer func() {
		atomic.AddInt32(&b.inFlight, -1)
		if b.onUnlease != nil {
			b.onUnlease(leaseID)
		}
	}()

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGatewayError(w, http.StatusBadRequest, sarierrors.Wrap(sarierrors.InvalidArgs, "malformed invoke body", err).
			WithClientAction(sarierrors.ActionFixArgs))
		return
	}
	if req.Tool == "" {
		writeGatewayError(w, http.StatusBadRequest, sarierrors.New(sarierrors.InvalidArgs, "tool is required").
			WithParam("tool").WithClientAction(sarierrors.ActionFixArgs))
		return
	}

	result, err := b.reg.Invoke(r.Context(), req.Tool, req.Args)
	if err != nil {
		writeGatewayError(w, statusForError(err), asGatewayError(err))
		return
	}

	if req.Format == "pack" {
		payload, err := tools.EncodePack(req.Tool, result)
		if err != nil {
			writeGatewayError(w, http.StatusInternalServerError, sarierrors.Wrap(sarierrors.IOError, "pack encoding failed", err))
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, payload)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"result": result}); err != nil {
		_ = err // client disconnected mid-write; nothing left to report to
	}
}

// statusForError maps a tool's structured error code onto an HTTP
// status, defaulting to 500 for codes without an obvious mapping.
func statusForError(err error) int {
	code, ok := sarierrors.AsCode(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch code {
	case sarierrors.InvalidArgs, sarierrors.SearchFirstRequired, sarierrors.SearchRefRequired, sarierrors.CandidateRefRequired:
		return http.StatusBadRequest
	case sarierrors.NotIndexed, sarierrors.RepoNotFound, sarierrors.SymbolNotFound, sarierrors.ErrRootOutOfScope:
		return http.StatusNotFound
	case sarierrors.ErrEngineUnavailable, sarierrors.ErrEngineNotInstalled:
		return http.StatusServiceUnavailable
	case sarierrors.VersionConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// asGatewayError adapts any error into the *sarierrors.Error
// writeGatewayError needs, wrapping a plain Go error as IO_ERROR.
func asGatewayError(err error) *sarierrors.Error {
	if se, ok := err.(*sarierrors.Error); ok {
		return se
	}
	return sarierrors.Wrap(sarierrors.IOError, "tool invocation failed", err)
}

// Wait blocks until Shutdown closes shutdownChan.
func (b *Backend) Wait() {
	<-b.shutdownChan
}

// Shutdown gracefully stops the HTTP server, waiting for in-flight
// requests to drain before returning.
func (b *Backend) Shutdown(ctx context.Context) error {
	select {
	case <-b.shutdownChan:
		return nil
	default:
		close(b.shutdownChan)
	}

	if b.server != nil {
		if err := b.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("backend: shutdown error: %w", err)
		}
	}
	b.wg.Wait()
	return nil
}
