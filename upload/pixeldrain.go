package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ashwinrm/buildherald/iox"
)

// Pixeldrain default endpoints. APIBase receives the raw PUT; the share
// link is a fixed template over the returned file id.
const (
	pixeldrainAPIBase   = "https://pixeldrain.com/api"
	pixeldrainShareBase = "https://pixeldrain.com/u"
)

// Pixeldrain uploads via PUT of the raw file bytes with a basic-auth
// credential header (empty user, API key as password).
type Pixeldrain struct {
	apiKey    string
	apiBase   string
	shareBase string
	client    *http.Client
}

// NewPixeldrain creates the Pixeldrain backend.
func NewPixeldrain(apiKey string) *Pixeldrain {
	return &Pixeldrain{
		apiKey:    apiKey,
		apiBase:   pixeldrainAPIBase,
		shareBase: pixeldrainShareBase,
		client:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Name implements Backend.
func (p *Pixeldrain) Name() string { return "PixelDrain" }

// pixeldrainResponse is the upload response body.
type pixeldrainResponse struct {
	ID string `json:"id"`
}

// Upload implements Backend.
func (p *Pixeldrain) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("pixeldrain: open %q: %w", path, err)
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("pixeldrain: stat %q: %w", path, err)
	}

	endpoint := p.apiBase + "/file/" + url.PathEscape(filepath.Base(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, f)
	if err != nil {
		return "", fmt.Errorf("pixeldrain: create request: %w", err)
	}
	req.ContentLength = info.Size()
	req.SetBasicAuth("", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pixeldrain: request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pixeldrain: %w", &StatusError{Code: resp.StatusCode, Body: string(body)})
	}

	var parsed pixeldrainResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("pixeldrain: malformed response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("pixeldrain: response missing file id")
	}

	return p.shareBase + "/" + parsed.ID, nil
}

// withEndpoints overrides the API endpoints (for testing).
func (p *Pixeldrain) withEndpoints(apiBase, shareBase string, timeout time.Duration) *Pixeldrain {
	p.apiBase = apiBase
	p.shareBase = shareBase
	p.client = &http.Client{Timeout: timeout}
	return p
}
