// Package feed reads the listing feed from a running daemon's HTTP API.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Listing struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	Price     float64   `json:"price"`
	Type      string    `json:"type"`
	Size      *float64  `json:"size,omitempty"`
	Rooms     *int      `json:"rooms,omitempty"`
	Months    *int      `json:"months,omitempty"`
	Distance  *float64  `json:"distance,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Available bool      `json:"available"`
}

type Feed struct {
	Listings []Listing `json:"listings"`
	Loading  bool      `json:"loading"`
	HasMore  bool      `json:"hasMore"`
	Error    string    `json:"error,omitempty"`
	Total    int       `json:"total"`
}

type Area struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient accepts either a full URL or a listen address like ":8080".
func NewClient(addr string) *Client {
	base := addr
	if strings.HasPrefix(base, ":") {
		base = "localhost" + base
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Listings(ctx context.Context) (*Feed, error) {
	var f Feed
	if err := c.do(ctx, http.MethodGet, "/api/v1/listings", &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadMore grows the daemon's visible window by one page.
func (c *Client) LoadMore(ctx context.Context) (*Feed, error) {
	var f Feed
	if err := c.do(ctx, http.MethodPost, "/api/v1/listings/more", &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) Areas(ctx context.Context) ([]Area, error) {
	var areas []Area
	if err := c.do(ctx, http.MethodGet, "/api/v1/areas", &areas); err != nil {
		return nil, err
	}
	return areas, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("daemon error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
