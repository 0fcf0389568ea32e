package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SocrataConfig configures the open data portal client.
type SocrataConfig struct {
	BaseURL  string
	AppToken string
	Username string
	Password string
	Timeout  time.Duration
}

// Socrata replaces datasets through the SODA resource endpoint.
type Socrata struct {
	base   *url.URL
	cfg    SocrataConfig
	client *http.Client
}

// NewSocrata validates cfg and builds the client.
func NewSocrata(cfg SocrataConfig) (*Socrata, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("publish: invalid socrata url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Socrata{base: base, cfg: cfg, client: &http.Client{Timeout: timeout}}, nil
}

// Name implements Sink.
func (s *Socrata) Name() string { return "socrata" }

// Replace implements Sink with a PUT of the full row set.
func (s *Socrata) Replace(ctx context.Context, dataset string, rows []Row) error {
	if dataset == "" {
		return ErrDataset
	}
	if rows == nil {
		rows = []Row{}
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("publish: encode %s: %w", dataset, err)
	}
	endpoint := s.base.JoinPath("resource", dataset+".json")
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.AppToken != "" {
		req.Header.Set("X-App-Token", s.cfg.AppToken)
	}
	if s.cfg.Username != "" {
		req.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish: socrata %s: %w", dataset, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("publish: socrata %s: status %d: %s", dataset, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
