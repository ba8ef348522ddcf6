package loader

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpClient fetches remote document/include URIs (§4.C paths may be
// "local or URL"). No third-party HTTP client library appears as a direct
// dependency anywhere in the retrieved pack for this narrow a concern (a
// single unauthenticated GET with a timeout); net/http is used directly,
// documented in DESIGN.md as a stdlib-justified exception.
var httpClient = &http.Client{Timeout: 30 * time.Second}

func fetchURL(raw string) ([]byte, error) {
	resp, err := httpClient.Get(raw)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("loader: GET %s: unexpected status %s", raw, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
