// Package sheets loads evaluation CSVs straight from a Google Sheets share
// link. The sheet must be published to the web; nothing here authenticates.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

// ErrInvalidURL is returned when the share link has no spreadsheet id.
var ErrInvalidURL = errors.New("not a google sheets url")

// ErrNotPublished is returned when the sheet exists but is not published to
// the web, which Google reports as a 404 on the export endpoint.
var ErrNotPublished = errors.New("sheet not found; publish it to the web (File > Share > Publish to web)")

var (
	sheetIDPattern = regexp.MustCompile(`/d/([a-zA-Z0-9-_]+)`)
	gidPattern     = regexp.MustCompile(`[?&#]gid=([0-9]+)`)
)

// Ref identifies one tab of one spreadsheet.
type Ref struct {
	SheetID string
	GID     string
}

// ParseURL extracts the spreadsheet id and tab gid from a share link. The
// gid defaults to 0, the first tab.
func ParseURL(url string) (Ref, error) {
	m := sheetIDPattern.FindStringSubmatch(url)
	if m == nil {
		return Ref{}, fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}
	ref := Ref{SheetID: m[1], GID: "0"}
	if g := gidPattern.FindStringSubmatch(url); g != nil {
		ref.GID = g[1]
	}
	return ref, nil
}

// CSVURL is the export endpoint that serves the tab as CSV.
func (r Ref) CSVURL(baseURL string) string {
	return fmt.Sprintf("%s/spreadsheets/d/%s/export?format=csv&gid=%s", baseURL, r.SheetID, r.GID)
}

// Client fetches published sheets. The zero value is not usable; call New.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

const defaultBaseURL = "https://docs.google.com"

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at a different host, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func New(opts ...Option) *Client {
	c := &Client{httpClient: http.DefaultClient, baseURL: defaultBaseURL}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchCSV downloads the tab behind a share link as CSV text.
func (c *Client) FetchCSV(ctx context.Context, shareURL string) ([]byte, error) {
	ref, err := ParseURL(shareURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.CSVURL(c.baseURL), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotPublished
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching sheet: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
