package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

// DefaultIPifyURL is the base URL of the ipify API.
const DefaultIPifyURL = "https://api.ipify.org"

type ipifyResponse struct {
	IP string `json:"ip"`
}

// IPifyClient resolves the public IP address of the host with the ipify API.
type IPifyClient struct {
	baseURL string
	client  *http.Client
}

func NewIPifyClient(baseURL string, timeout time.Duration) *IPifyClient {
	if baseURL == "" {
		baseURL = DefaultIPifyURL
	}

	return &IPifyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
	}
}

func (c *IPifyClient) LookupPublicIP(ctx context.Context) (string, error) {
	const op = "adapter.geo.IPifyClient.LookupPublicIP"

	var resp ipifyResponse
	if err := getJSON(ctx, c.client, c.baseURL+"/?format=json", &resp); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	addr, err := netip.ParseAddr(resp.IP)
	if err != nil {
		return "", fmt.Errorf("%s: %w: invalid ip %q", op, ErrLookupFailed, resp.IP)
	}

	return addr.String(), nil
}
