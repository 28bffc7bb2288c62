package geo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultIPAPIURL is the base URL of the ip-api.com JSON API.
const DefaultIPAPIURL = "http://ip-api.com"

var ErrLookupFailed = errors.New("lookup failed")

type ipAPIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Country string `json:"country"`
}

// IPAPIClient resolves countries with the ip-api.com JSON API.
type IPAPIClient struct {
	baseURL string
	client  *http.Client
}

func NewIPAPIClient(baseURL string, timeout time.Duration) *IPAPIClient {
	if baseURL == "" {
		baseURL = DefaultIPAPIURL
	}

	return &IPAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
	}
}

func (c *IPAPIClient) LookupCountry(ctx context.Context, ip string) (string, error) {
	const op = "adapter.geo.IPAPIClient.LookupCountry"

	endpoint := fmt.Sprintf("%s/json/%s?fields=status,message,country", c.baseURL, url.PathEscape(ip))

	var resp ipAPIResponse
	if err := getJSON(ctx, c.client, endpoint, &resp); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if resp.Status != "success" {
		return "", fmt.Errorf("%s: %w: %s", op, ErrLookupFailed, resp.Message)
	}

	return resp.Country, nil
}
