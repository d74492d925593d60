package api_functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/HannahMarsh/onion-router/internal/api/structs"
	"github.com/HannahMarsh/onion-router/pkg/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrForwardingFailure is returned when the next hop is unreachable or answers with a non-2xx status.
var ErrForwardingFailure = errors.New("forwarding failure")

// RequestIDHeader carries the id that correlates one message across hops in the logs.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// WithRequestID stores a request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the stored request id, or a fresh one.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Transport delivers one wire payload to the participant that owns address.
type Transport interface {
	Send(ctx context.Context, address int, payload string) error
}

// Resolver turns an address into the base URL (scheme://host:port) of its owner.
type Resolver func(address int) string

// HTTPTransport posts {"message": payload} to <base>/message.
type HTTPTransport struct {
	resolve  Resolver
	client   *http.Client
	compress bool
}

// NewHTTPTransport returns a transport with a whole-request timeout. Sends are never retried.
func NewHTTPTransport(resolve Resolver, timeout time.Duration, compress bool) *HTTPTransport {
	return &HTTPTransport{
		resolve:  resolve,
		client:   &http.Client{Timeout: timeout},
		compress: compress,
	}
}

// HostResolver resolves addresses as ports on the host returned by hostFor.
func HostResolver(hostFor func(address int) string) Resolver {
	return func(address int) string {
		return fmt.Sprintf("http://%s:%d", hostFor(address), address)
	}
}

func (t *HTTPTransport) Send(ctx context.Context, address int, payload string) error {
	url := t.resolve(address) + "/message"
	requestID := RequestIDFromContext(ctx)
	slog.Debug("Sending message...", "to", url, "request_id", requestID)

	data, err := json.Marshal(structs.MessageBody{Message: structs.NewOptionalString(payload)})
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	var body io.Reader = bytes.NewReader(data)
	if t.compress {
		compressed, err := utils.Compress(data)
		if err != nil {
			return errors.Wrap(err, "failed to compress message")
		}
		body = &compressed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if t.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrapf(ErrForwardingFailure, "failed to send POST request to %s: %v", url, err)
	}
	defer func(Body io.ReadCloser) {
		if err = Body.Close(); err != nil {
			slog.Error("Error closing response body", "err", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Wrapf(ErrForwardingFailure, "%s answered %d: %s", url, resp.StatusCode, bytes.TrimSpace(detail))
	}

	slog.Debug("✅ Successfully sent message.", "to", url, "request_id", requestID)
	return nil
}

// ReadBody reads a request body, transparently inflating gzip content.
func ReadBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read body")
	}
	if r.Header.Get("Content-Encoding") == "gzip" {
		return utils.Decompress(body)
	}
	return body, nil
}

// DecodeJSON reads and unmarshals a request body into v.
func DecodeJSON(r *http.Request, v any) error {
	body, err := ReadBody(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if err = json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, "failed to decode request body")
	}
	return nil
}

// ContextFromRequest carries the caller's request id into the handler context.
func ContextFromRequest(r *http.Request) context.Context {
	ctx := r.Context()
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return WithRequestID(ctx, id)
	}
	return WithRequestID(ctx, uuid.NewString())
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error writing response", "err", err)
	}
}

// WriteError writes {"error": message} with the given status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, structs.ErrorResponse{Error: message})
}

// WriteText writes a plain text body such as "live" or "success".
func WriteText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(text)); err != nil {
		slog.Error("Error writing response", "err", err)
	}
}

// HandleStatus answers liveness probes.
func HandleStatus(w http.ResponseWriter, _ *http.Request) {
	WriteText(w, http.StatusOK, "live")
}
