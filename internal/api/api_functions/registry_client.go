package api_functions

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/HannahMarsh/onion-router/internal/api/structs"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

const nodeRegistryCacheKey = "nodes"

// RegistryClient talks to the node registry over HTTP.
type RegistryClient struct {
	baseURL string
	client  *http.Client
	cache   *cache.Cache // nil when caching is disabled
	ttl     time.Duration
}

// NewRegistryClient returns a client for the registry at baseURL. A positive ttl
// makes GetNodeRegistry reuse a fetched snapshot for that long.
func NewRegistryClient(baseURL string, timeout time.Duration, ttl time.Duration) *RegistryClient {
	rc := &RegistryClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		ttl:     ttl,
	}
	if ttl > 0 {
		rc.cache = cache.New(ttl, 2*ttl)
	}
	return rc
}

// RegisterNode publishes a relay's public key.
func (rc *RegistryClient) RegisterNode(ctx context.Context, nodeID int, pubKey string) error {
	data, err := json.Marshal(structs.RegisterNodeBody{NodeID: &nodeID, PubKey: pubKey})
	if err != nil {
		return errors.Wrap(err, "failed to marshal node registration")
	}

	url := rc.baseURL + "/registerNode"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rc.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to send POST request to %s", url)
	}
	defer func(Body io.ReadCloser) {
		if err2 := Body.Close(); err2 != nil {
			slog.Error("error closing response body", "err", err2)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var e structs.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return errors.Errorf("failed to register node %d, status code: %d, %s", nodeID, resp.StatusCode, e.Error)
	}

	rc.invalidate()
	return nil
}

// GetNodeRegistry lists registered nodes, ordered by id.
func (rc *RegistryClient) GetNodeRegistry(ctx context.Context) ([]structs.Node, error) {
	if rc.cache != nil {
		if nodes, found := rc.cache.Get(nodeRegistryCacheKey); found {
			return nodes.([]structs.Node), nil
		}
	}

	url := rc.baseURL + "/getNodeRegistry"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "error making GET request to %s", url)
	}
	defer func(Body io.ReadCloser) {
		if err2 := Body.Close(); err2 != nil {
			slog.Error("error closing response body", "err", err2)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var registry structs.GetNodeRegistryBody
	if err = json.NewDecoder(resp.Body).Decode(&registry); err != nil {
		return nil, errors.Wrap(err, "error decoding response body")
	}

	if rc.cache != nil {
		rc.cache.Set(nodeRegistryCacheKey, registry.Nodes, cache.DefaultExpiration)
	}
	return registry.Nodes, nil
}

func (rc *RegistryClient) invalidate() {
	if rc.cache != nil {
		rc.cache.Delete(nodeRegistryCacheKey)
	}
}
