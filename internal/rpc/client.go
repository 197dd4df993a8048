package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-feed-backend/internal/domain"
)

// maxResponseBytes caps how much of a collaborator response is read.
const maxResponseBytes = 8 << 20

var rpcCallLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "rpc_call_duration_seconds",
		Help:    "Collaborator round-trip latency by dependency, path and outcome.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"dependency", "path", "outcome"},
)

func init() {
	prometheus.MustRegister(rpcCallLatency)
}

// Envelope is embedded in every collaborator request body.
type Envelope struct {
	ReqID   int64             `json:"req_id"`
	Carrier map[string]string `json:"carrier"`
}

// NewEnvelope builds an Envelope, substituting an empty carrier for nil so
// the field always encodes as an object.
func NewEnvelope(reqID int64, carrier map[string]string) Envelope {
	if carrier == nil {
		carrier = map[string]string{}
	}
	return Envelope{ReqID: reqID, Carrier: carrier}
}

// errorBody is the failure payload collaborators answer with.
type errorBody struct {
	Error string `json:"error"`
}

// Client issues JSON POST calls to one named collaborator through a Pool.
type Client struct {
	name string
	base string
	pool *Pool
}

// NewClient binds a collaborator name (used in errors and metrics) to its
// base URL.
func NewClient(pool *Pool, name, baseURL string) *Client {
	return &Client{name: name, base: baseURL, pool: pool}
}

// Name returns the dependency name used in errors.
func (c *Client) Name() string { return c.name }

// Call posts req as JSON to base+path and decodes a 2xx response into resp
// (skipped when resp is nil). The leased handle is returned on success and
// evicted on any transport, status or decode failure.
func (c *Client) Call(ctx context.Context, path string, req, resp any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("rpc: encode %s%s request: %w", c.name, path, err)
	}

	h, err := c.pool.Lease(ctx, c.base)
	if err != nil {
		var de *domain.DependencyError
		if errors.As(err, &de) {
			err = de.Err
		}
		c.observe(path, "unavailable", time.Now())
		return domain.NewDependencyError(domain.KindConnectionUnavailable, c.name, path, err)
	}

	start := time.Now()
	if err := c.roundTrip(ctx, h, path, payload, resp); err != nil {
		c.pool.Evict(h)
		c.observe(path, "failed", start)
		return domain.NewDependencyError(domain.KindRemoteCallFailure, c.name, path, err)
	}
	c.pool.Return(h)
	c.observe(path, "ok", start)
	return nil
}

func (c *Client) roundTrip(ctx context.Context, h *Handle, path string, payload []byte, resp any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base.JoinPath(path).String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	res, err := h.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			return fmt.Errorf("status %d: %s", res.StatusCode, eb.Error)
		}
		return errors.New("status " + strconv.Itoa(res.StatusCode))
	}

	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(body, resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) observe(path, outcome string, start time.Time) {
	rpcCallLatency.WithLabelValues(c.name, path, outcome).Observe(time.Since(start).Seconds())
}
