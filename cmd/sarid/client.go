package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/registry"
)

// defaultGatewayHost/Port is Sari's documented fixed loopback ingress
// (spec §4.7 "Fixed ingress: the gateway binds once to a single
// ingress address"), used as registry.Resolver's last-resort default
// when no workspace binding exists yet.
const (
	defaultGatewayHost = "127.0.0.1"
	defaultGatewayPort = 7787
)

func defaultGatewayEndpoint() registry.Endpoint {
	return registry.Endpoint{Host: defaultGatewayHost, Port: defaultGatewayPort}
}

// hostDataDir is the one registry.json shared by every daemon and CLI
// invocation on this host, distinct from a workspace's own
// <root>/.sari data directory.
func hostDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve host data dir: %w", err)
	}
	return filepath.Join(home, ".sari"), nil
}

func openHostRegistry() (*registry.Registry, error) {
	dir, err := hostDataDir()
	if err != nil {
		return nil, err
	}
	return registry.New(dir), nil
}

// daemonClient issues tool-invocation requests directly against a
// workspace's live daemon backend, resolved through the registry. CLI
// commands that mutate state (rescan, scan-once, index_file) always go
// through this client rather than opening a second Store/Writer
// against the same workspace, per §5's single-writer discipline.
type daemonClient struct {
	endpoint registry.Endpoint
}

// resolveDaemon resolves the backend endpoint serving workspace root,
// per registry.Resolver's explicit -> env -> registry -> default order.
func resolveDaemon(root string) (*daemonClient, error) {
	reg, err := openHostRegistry()
	if err != nil {
		return nil, err
	}
	resolver := registry.NewResolver(reg, false, defaultGatewayEndpoint())
	ep, _, err := resolver.Resolve(root, nil)
	if err != nil {
		return nil, err
	}
	return &daemonClient{endpoint: ep}, nil
}

type invokeResponse struct {
	Result interface{} `json:"result"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// invoke POSTs {tool, args} to the resolved daemon's /invoke route and
// returns its decoded result, translating a connection failure into a
// NOT_INDEXED error hinting at `sarid daemon start`.
func (d *daemonClient) invoke(ctx context.Context, tool string, args map[string]interface{}) (interface{}, error) {
	body, err := json.Marshal(map[string]interface{}{"tool": tool, "args": args})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("http://%s/invoke", d.endpoint.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, sarierrors.Wrap(sarierrors.NotIndexed,
			fmt.Sprintf("no daemon reachable at %s", d.endpoint), err).
			WithHint("run: sarid daemon start").WithClientAction(sarierrors.ActionRunDoctor)
	}
	defer resp.Body.Close()

	var out invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode daemon response: %w", err)
	}
	if out.Error != nil {
		return nil, sarierrors.New(sarierrors.Code(out.Error.Code), out.Error.Message)
	}
	return out.Result, nil
}
