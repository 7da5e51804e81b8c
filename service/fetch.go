package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

const maxFetchBytes = 64 << 20

// fetchLocation reads an http(s) URL or a local path. Only operator-driven
// corpus ingestion may use it; request handlers go through fetchURL.
func fetchLocation(ctx context.Context, client HTTPDoer, location string) ([]byte, string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, "", fmt.Errorf("empty location")
	}

	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", location, err)
		}
		return data, "", nil
	}
	return fetchURL(ctx, client, location)
}

// checkURL accepts absolute http and https URLs only.
func checkURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidInput, raw)
	}
	return nil
}

// fetchURL downloads an http(s) URL. Anything else is rejected.
func fetchURL(ctx context.Context, client HTTPDoer, location string) ([]byte, string, error) {
	location = strings.TrimSpace(location)
	if err := checkURL(location); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request for %s: %w", location, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("failed to fetch %s: status %d", location, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", location, err)
	}
	if len(data) > maxFetchBytes {
		return nil, "", fmt.Errorf("%s exceeds %d bytes", location, maxFetchBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
