package did

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbd54566975/did-service/internal/util"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// get performs a single GET and returns the body of a 2xx response. Every failure is a *ClientRequestError.
func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/json")
	return do(client, req)
}

// postJSON sends body as JSON and returns the body of a 2xx response.
func postJSON(ctx context.Context, client *http.Client, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling request body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return do(client, req)
}

func do(client *http.Client, req *http.Request) ([]byte, error) {
	url := req.URL.String()
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ClientRequestError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(bufio.NewReader(resp.Body))
	if err != nil {
		return nil, &ClientRequestError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	if !util.Is2xxResponse(resp.StatusCode) {
		return nil, &ClientRequestError{URL: url, StatusCode: resp.StatusCode}
	}
	return respBody, nil
}
