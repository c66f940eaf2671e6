package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StoreKey is the single key under which the entire code list lives in
// the remote store.
const StoreKey = "verification-codes"

// LegacyStoreKey held the original deployment's flat string list before
// usage tracking existed. ConvertLegacyCodes migrates it to StoreKey.
const LegacyStoreKey = "verified-codes"

// legacyConvertLimit caps how many legacy codes a migration carries
// over.
const legacyConvertLimit = 50

// Code is one single-use access code. Codes are never deleted; a
// consumed code is retained with IsValid=false so UsageCount stays
// auditable.
type Code struct {
	Code       string `json:"code"`
	UsageCount int    `json:"usageCount"`
	IsValid    bool   `json:"isValid"`
}

// Store is read/overwrite access to the shared code list. Reads return
// the whole list; writes replace it in one upsert.
type Store interface {
	GetCodes(ctx context.Context) ([]Code, error)
	PutCodes(ctx context.Context, codes []Code) error
}

// EdgeConfigClient is the canonical store client, speaking the Vercel
// Edge Config item API.
type EdgeConfigClient struct {
	configID string
	apiToken string
	baseURL  string
	client   *http.Client
}

// NewEdgeConfigClient creates a store client for one Edge Config.
func NewEdgeConfigClient(configID, apiToken string) *EdgeConfigClient {
	return &EdgeConfigClient{
		configID: configID,
		apiToken: apiToken,
		baseURL:  "https://api.vercel.com",
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBaseURL overrides the API host, mainly for tests.
func (c *EdgeConfigClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// ParseConfigID extracts the "ecfg_..." identifier from an Edge Config
// connection string of the form
// "https://edge-config.vercel.com/ecfg_abc123?token=...".
func ParseConfigID(connection string) (string, error) {
	idx := strings.Index(connection, "ecfg_")
	if idx < 0 {
		return "", fmt.Errorf("no ecfg_ identifier in connection string")
	}
	id := connection[idx:]
	if q := strings.IndexByte(id, '?'); q >= 0 {
		id = id[:q]
	}
	if id == "ecfg_" {
		return "", fmt.Errorf("empty ecfg_ identifier in connection string")
	}
	return id, nil
}

// GetCodes implements the Store interface.
func (c *EdgeConfigClient) GetCodes(ctx context.Context) ([]Code, error) {
	url := fmt.Sprintf("%s/v1/edge-config/%s/items/%s", c.baseURL, c.configID, StoreKey)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch verification codes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("store returned %d fetching codes: %s", resp.StatusCode, string(body))
	}

	var item struct {
		Value []Code `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode code list: %w", err)
	}

	return item.Value, nil
}

// PutCodes implements the Store interface. The entire list is written
// back as a single whole-value upsert.
func (c *EdgeConfigClient) PutCodes(ctx context.Context, codes []Code) error {
	payload := struct {
		Items []storeItem `json:"items"`
	}{
		Items: []storeItem{{
			Operation: "upsert",
			Key:       StoreKey,
			Value:     codes,
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal code list: %w", err)
	}

	url := fmt.Sprintf("%s/v1/edge-config/%s/items", c.baseURL, c.configID)

	req, err := http.NewRequestWithContext(ctx, "PATCH", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update verification codes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("store returned %d updating codes: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// GetLegacyCodes reads the pre-migration flat string list, or an empty
// list if the key was never set.
func (c *EdgeConfigClient) GetLegacyCodes(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/v1/edge-config/%s/items/%s", c.baseURL, c.configID, LegacyStoreKey)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch legacy codes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("store returned %d fetching legacy codes: %s", resp.StatusCode, string(body))
	}

	var item struct {
		Value []string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode legacy code list: %w", err)
	}

	return item.Value, nil
}

// ConvertLegacyCodes migrates the legacy flat list into structured
// entries under StoreKey and deletes the legacy key, in one PATCH. At
// most the first 50 legacy codes are carried over, each fresh with a
// zero usage count. Returns the number of codes migrated.
func (c *EdgeConfigClient) ConvertLegacyCodes(ctx context.Context) (int, error) {
	legacy, err := c.GetLegacyCodes(ctx)
	if err != nil {
		return 0, err
	}
	if len(legacy) == 0 {
		return 0, nil
	}

	if len(legacy) > legacyConvertLimit {
		legacy = legacy[:legacyConvertLimit]
	}
	codes := make([]Code, 0, len(legacy))
	for _, code := range legacy {
		codes = append(codes, Code{Code: code, UsageCount: 0, IsValid: true})
	}

	payload := struct {
		Items []storeItem `json:"items"`
	}{
		Items: []storeItem{
			{Operation: "upsert", Key: StoreKey, Value: codes},
			{Operation: "delete", Key: LegacyStoreKey},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal code list: %w", err)
	}

	url := fmt.Sprintf("%s/v1/edge-config/%s/items", c.baseURL, c.configID)

	req, err := http.NewRequestWithContext(ctx, "PATCH", url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to migrate verification codes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("store returned %d migrating codes: %s", resp.StatusCode, string(respBody))
	}

	return len(codes), nil
}

type storeItem struct {
	Operation string `json:"operation"`
	Key       string `json:"key"`
	Value     []Code `json:"value,omitempty"`
}
