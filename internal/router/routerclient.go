package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shoplist/internal/wire"
)

const requestTimeout = 5 * time.Second

// postToWorker forwards req to addr's control channel and decodes the
// response. Every call is bounded by requestTimeout regardless of the
// caller's own deadline, matching the receive timeout worker RPCs are
// specified against.
func postToWorker(ctx context.Context, client *http.Client, addr string, req wire.ClientRequest) (wire.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return wire.Response{}, err
	}

	url := fmt.Sprintf("http://%s/worker/request", addr)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return wire.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return wire.Response{}, err
	}
	defer resp.Body.Close()

	var decoded wire.Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return wire.Response{}, err
	}
	return decoded, nil
}

// fetchWorkerKeys probes a worker's warm-recovery endpoint.
func fetchWorkerKeys(ctx context.Context, client *http.Client, addr string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/worker/keys", addr)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded wire.KeyList
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded.Keys, nil
}
