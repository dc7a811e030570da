// Package boundary fetches the country and state outlines and turns them
// into map layers.
package boundary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tricolour/indiamap/internal/geo"

	"github.com/spf13/afero"
)

// maxBody caps a boundary document; the state outlines are a few MB.
const maxBody = 64 << 20

// FetchError reports a boundary source that could not be retrieved or
// decoded. The layer built from it is omitted.
type FetchError struct {
	Source string
	Status int // HTTP status, 0 when the request never completed
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s: status %d", e.Source, e.Status)
	}
	return fmt.Sprintf("fetching %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client retrieves GeoJSON documents over HTTP, or from local storage for
// sources that are not http(s) URLs.
type Client struct {
	httpClient *http.Client
	fs         afero.Fs
}

// NewClient creates a client. A nil fs disables local sources.
func NewClient(timeout time.Duration, fs afero.Fs) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		fs:         fs,
	}
}

// FetchFeatures retrieves and decodes the feature collection at source.
func (c *Client) FetchFeatures(ctx context.Context, source string) (geo.FeatureCollection, error) {
	data, err := c.fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	fc, err := geo.DecodeFeatureCollection(data)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	return fc, nil
}

func (c *Client) fetch(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		if c.fs == nil {
			return nil, &FetchError{Source: source, Err: errors.New("not an http(s) URL")}
		}
		data, err := afero.ReadFile(c.fs, strings.TrimPrefix(source, "file://"))
		if err != nil {
			return nil, &FetchError{Source: source, Err: err}
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Source: source, Status: resp.StatusCode,
			Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	return data, nil
}
