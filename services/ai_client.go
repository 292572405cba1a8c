package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrAIDisabled is returned by every call when no AI service URL is configured
var ErrAIDisabled = errors.New("ai service not configured")

// CollaborativeTable is the column-oriented (buyer, category, score) table
// sent to the similarity endpoint
type CollaborativeTable struct {
	ClientIDs  []uint   `json:"client_id"`
	Categories []string `json:"categorie"`
	Scores     []int    `json:"score"`
}

// IndexedProduct is the payload of the product indexing endpoint
type IndexedProduct struct {
	ID          uint            `json:"id"`
	VendorPrice decimal.Decimal `json:"vendor_price"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ImageURL    string          `json:"img_url"`
}

// AIClient is the single seam to the external AI service. Calls return an
// error instead of panicking; callers pick the fallback.
type AIClient interface {
	IndexProduct(ctx context.Context, p IndexedProduct) error
	SimilarBuyers(ctx context.Context, table CollaborativeTable, buyerID uint, k int) ([]uint, error)
}

// HTTPAIClient talks to the AI service over JSON/HTTP
type HTTPAIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAIClient creates a client; an empty baseURL yields a client whose
// calls all fail with ErrAIDisabled
func NewAIClient(baseURL string, timeout time.Duration) *HTTPAIClient {
	return &HTTPAIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// IndexProduct registers a listing for semantic search
func (c *HTTPAIClient) IndexProduct(ctx context.Context, p IndexedProduct) error {
	return c.post(ctx, "/products/add_product", p, nil)
}

type similarityRequest struct {
	Data     CollaborativeTable `json:"collab_filtered_data"`
	ClientID uint               `json:"client_id"`
	K        int                `json:"k"`
}

type similarityResponse struct {
	// the service spells the field this way
	SimilarClientIDs []uint `json:"similiar_clients_ids"`
}

// SimilarBuyers returns up to k buyer ids close to buyerID
func (c *HTTPAIClient) SimilarBuyers(ctx context.Context, table CollaborativeTable, buyerID uint, k int) ([]uint, error) {
	var resp similarityResponse
	err := c.post(ctx, "/collaborative_filtering", similarityRequest{Data: table, ClientID: buyerID, K: k}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.SimilarClientIDs, nil
}

func (c *HTTPAIClient) post(ctx context.Context, path string, body, out interface{}) error {
	if c == nil || c.baseURL == "" {
		return ErrAIDisabled
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// ProductIndexer pushes listings to the AI service from its own goroutine so
// approvals and updates never wait on it
type ProductIndexer struct {
	client  AIClient
	queue   chan IndexedProduct
	timeout time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewProductIndexer creates an indexer with a bounded queue
func NewProductIndexer(client AIClient, buf int, timeout time.Duration) *ProductIndexer {
	return &ProductIndexer{
		client:  client,
		queue:   make(chan IndexedProduct, buf),
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Start runs the indexing worker until Close
func (ix *ProductIndexer) Start() {
	go func() {
		defer close(ix.done)
		for p := range ix.queue {
			ctx, cancel := context.WithTimeout(context.Background(), ix.timeout)
			err := ix.client.IndexProduct(ctx, p)
			cancel()
			switch {
			case errors.Is(err, ErrAIDisabled):
			case err != nil:
				log.Printf("[ai] failed to index listing %d: %v", p.ID, err)
			default:
				log.Printf("[ai] listing %d indexed", p.ID)
			}
		}
	}()
}

// Enqueue schedules a listing; it never blocks and drops when the queue is full
func (ix *ProductIndexer) Enqueue(p IndexedProduct) {
	if ix == nil {
		return
	}
	select {
	case ix.queue <- p:
	default:
		log.Printf("[ai] index queue full, skipping listing %d", p.ID)
	}
}

// Close stops the worker after the queue drains
func (ix *ProductIndexer) Close() {
	ix.once.Do(func() { close(ix.queue) })
	<-ix.done
}
