package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"rentscout/config"
	"rentscout/models"
)

// SupabaseStore reads the listing collection through the PostgREST API.
type SupabaseStore struct {
	url     string
	anonKey string
	table   string
	client  *http.Client
}

func NewSupabaseStore(cfg *config.SupabaseConfig) *SupabaseStore {
	table := cfg.Table
	if table == "" {
		table = "listings"
	}
	return &SupabaseStore{
		url:     cfg.URL,
		anonKey: cfg.AnonKey,
		table:   table,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *SupabaseStore) Name() string {
	return "supabase"
}

func (s *SupabaseStore) FetchAll(ctx context.Context) ([]models.RawRecord, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", s.url, url.PathEscape(s.table), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+s.anonKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("supabase error %d: %s", resp.StatusCode, string(body))
	}

	var records []models.RawRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	return records, nil
}
