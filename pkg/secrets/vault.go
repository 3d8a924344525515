package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Hydrate pulls secrets (the Places API key, database password) from a Vault
// KV v2 path and exports any keys not already present in the environment. It
// is a no-op unless VAULT_ENABLED=true; config.Load reads the environment
// afterwards, so Vault values behave like any other env configuration.
func Hydrate(ctx context.Context) (int, error) {
	if !strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true") {
		return 0, nil
	}

	addr := strings.TrimRight(os.Getenv("VAULT_ADDR"), "/")
	token := os.Getenv("VAULT_TOKEN")
	mount := os.Getenv("VAULT_MOUNT")
	if mount == "" {
		mount = "secret"
	}
	path := strings.TrimLeft(os.Getenv("VAULT_PATH"), "/")
	if addr == "" || token == "" || path == "" {
		return 0, errors.New("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN, VAULT_PATH)")
	}

	url := fmt.Sprintf("%s/v1/%s/data/%s", addr, strings.Trim(mount, "/"), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-Vault-Token", token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("vault fetch failed: %s %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Data struct {
			Data map[string]string `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, err
	}
	if payload.Data.Data == nil {
		return 0, errors.New("vault response missing KV v2 data")
	}

	loaded := 0
	for key, value := range payload.Data.Data {
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
