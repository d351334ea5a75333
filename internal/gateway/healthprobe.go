package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sari-dev/sari/internal/registry"
)

// httpPingPath mirrors IndexServer's /ping endpoint.
const httpPingPath = "/ping"

// HTTPHealthProbe implements daemon.HealthProbe by GETing /ping on the
// candidate endpoint and treating any non-2xx status or transport error
// as unhealthy.
func HTTPHealthProbe(ctx context.Context, ep registry.Endpoint) error {
	url := fmt.Sprintf("http://%s%s", ep.String(), httpPingPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health probe to %s returned %s", url, resp.Status)
	}
	return nil
}
