package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stavrosp/flowguard/config"
	"github.com/stavrosp/flowguard/internal/telemetry"
)

// storeClient posts event batches as JSON to one store endpoint. The
// vector store and relational store get one instance each; the circuit
// breakers around these calls live in the pipeline, not here.
type storeClient struct {
	client *http.Client
	url    string
}

func newStoreClients(cfg config.DependenciesConfig) (vector, records *storeClient) {
	client := &http.Client{Timeout: 10 * time.Second}
	return &storeClient{client: client, url: cfg.VectorStoreURL},
		&storeClient{client: client, url: cfg.RelationalStoreURL}
}

func (s *storeClient) Upsert(ctx context.Context, events []telemetry.Event) error {
	return s.post(ctx, events)
}

func (s *storeClient) Insert(ctx context.Context, events []telemetry.Event) error {
	return s.post(ctx, events)
}

func (s *storeClient) post(ctx context.Context, events []telemetry.Event) error {
	body, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("store %s returned status %d", s.url, res.StatusCode)
	}
	return nil
}
