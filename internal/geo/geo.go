// Package geo resolves a client IP to a country code for click telemetry.
// Lookups are best-effort: any failure yields an empty country.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vrsjns/bearlink-sub000/internal/logger"
)

type Resolver struct {
	endpoint string
	httpc    *http.Client
}

// NewResolver returns nil when no endpoint is configured; a nil Resolver
// resolves everything to the empty country.
func NewResolver(endpoint string) *Resolver {
	if endpoint == "" {
		return nil
	}
	return &Resolver{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpc:    &http.Client{Timeout: 2 * time.Second},
	}
}

type lookupResponse struct {
	CountryCode string `json:"countryCode"`
}

func (r *Resolver) Country(ctx context.Context, ip string) string {
	if r == nil || ip == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", r.endpoint, ip), nil)
	if err != nil {
		return ""
	}

	resp, err := r.httpc.Do(req)
	if err != nil {
		logger.Log.Warnw("geo lookup failed", "ip", ip, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var result lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ""
	}
	return result.CountryCode
}
