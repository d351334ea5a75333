package registry

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// endpointEnvVar overrides endpoint resolution for the whole host, used
// for local development against a daemon started out-of-band.
const endpointEnvVar = "SARI_ENDPOINT"

// Endpoint is a resolved host:port the client should dial.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Source names which step of the resolution order produced an Endpoint.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceEnv      Source = "env"
	SourceRegistry Source = "registry"
	SourceDefault  Source = "default"
)

// Resolver implements §4.6's strict-SSOT endpoint resolution order:
// explicit override -> environment override -> registry lookup ->
// built-in default.
type Resolver struct {
	reg        *Registry
	strictSSOT bool
	builtin    Endpoint
}

// NewResolver builds a Resolver. builtinDefault is the last-resort
// endpoint when nothing else resolves (e.g. the gateway's documented
// fixed ingress).
func NewResolver(reg *Registry, strictSSOT bool, builtinDefault Endpoint) *Resolver {
	return &Resolver{reg: reg, strictSSOT: strictSSOT, builtin: builtinDefault}
}

// Resolve returns the endpoint to use for workspace ws. explicitOverride,
// when non-nil, always wins. Under strict_ssot, a legacy single-file
// endpoint (not modeled by this registry) is never consulted; that
// constraint is structural here since this Resolver has no legacy path.
func (r *Resolver) Resolve(ws string, explicitOverride *Endpoint) (Endpoint, Source, error) {
	if explicitOverride != nil {
		return *explicitOverride, SourceExplicit, nil
	}

	if v := os.Getenv(endpointEnvVar); v != "" {
		ep, err := parseEndpoint(v)
		if err != nil {
			return Endpoint{}, "", fmt.Errorf("%s: %w", endpointEnvVar, err)
		}
		return ep, SourceEnv, nil
	}

	d, ok, err := r.reg.ResolveWorkspace(ws)
	if err != nil {
		return Endpoint{}, "", err
	}
	if ok {
		return Endpoint{Host: d.Host, Port: d.Port}, SourceRegistry, nil
	}

	return r.builtin, SourceDefault, nil
}

func parseEndpoint(v string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(v))
	if err != nil {
		return Endpoint{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return Endpoint{Host: host, Port: port}, nil
}
