package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const safeBrowsingURL = "https://safebrowsing.googleapis.com/v4/threatMatches:find"

// SafeBrowsing queries the Google Safe Browsing lookup API. A nil client
// (no credential configured) disables the check entirely.
type SafeBrowsing struct {
	apiKey   string
	endpoint string
	httpc    *http.Client
}

func NewSafeBrowsing(apiKey string) *SafeBrowsing {
	if apiKey == "" {
		return nil
	}
	return &SafeBrowsing{
		apiKey:   apiKey,
		endpoint: safeBrowsingURL,
		httpc:    &http.Client{Timeout: 5 * time.Second},
	}
}

type threatRequest struct {
	ThreatInfo struct {
		ThreatTypes      []string    `json:"threatTypes"`
		PlatformTypes    []string    `json:"platformTypes"`
		ThreatEntryTypes []string    `json:"threatEntryTypes"`
		ThreatEntries    []threatURL `json:"threatEntries"`
	} `json:"threatInfo"`
}

type threatURL struct {
	URL string `json:"url"`
}

type threatResponse struct {
	Matches []json.RawMessage `json:"matches"`
}

func (c *SafeBrowsing) Check(ctx context.Context, rawURL string) (bool, error) {
	var reqBody threatRequest
	reqBody.ThreatInfo.ThreatTypes = []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE"}
	reqBody.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	reqBody.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	reqBody.ThreatInfo.ThreatEntries = []threatURL{{URL: rawURL}}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("safe browsing responded with %d", resp.StatusCode)
	}

	var result threatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return len(result.Matches) > 0, nil
}
