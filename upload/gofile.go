package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ashwinrm/buildherald/iox"
)

// Gofile default endpoints. The upload server is discovered per call from
// the directory endpoint, then the file goes up as a multipart POST.
const (
	gofileAPIBase         = "https://api.gofile.io"
	gofileUploadURLFormat = "https://%s.gofile.io/uploadFile"
)

// Gofile uploads via server discovery plus multipart POST.
type Gofile struct {
	apiBase         string
	uploadURLFormat string
	client          *http.Client
}

// NewGofile creates the Gofile backend.
func NewGofile() *Gofile {
	return &Gofile{
		apiBase:         gofileAPIBase,
		uploadURLFormat: gofileUploadURLFormat,
		client:          &http.Client{Timeout: DefaultTimeout},
	}
}

// Name implements Backend.
func (g *Gofile) Name() string { return "GoFile" }

// gofileServersResponse is the server directory response body.
type gofileServersResponse struct {
	Status string `json:"status"`
	Data   struct {
		Servers []struct {
			Name string `json:"name"`
		} `json:"servers"`
	} `json:"data"`
}

// gofileUploadResponse is the upload response body.
type gofileUploadResponse struct {
	Status string `json:"status"`
	Data   struct {
		DownloadPage string `json:"downloadPage"`
	} `json:"data"`
}

// Upload implements Backend.
func (g *Gofile) Upload(ctx context.Context, path string) (string, error) {
	server, err := g.discoverServer(ctx)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("gofile: open %q: %w", path, err)
	}
	defer iox.DiscardClose(f)

	// Stream the multipart body through a pipe; artifacts are too large to
	// buffer in memory.
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(form.Close())
	}()

	endpoint := fmt.Sprintf(g.uploadURLFormat, server)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return "", fmt.Errorf("gofile: create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gofile: request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gofile: %w", &StatusError{Code: resp.StatusCode, Body: string(body)})
	}

	var parsed gofileUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("gofile: malformed response: %w", err)
	}
	if parsed.Status != "ok" || parsed.Data.DownloadPage == "" {
		return "", fmt.Errorf("gofile: upload rejected (status %q)", parsed.Status)
	}

	return parsed.Data.DownloadPage, nil
}

// discoverServer asks the directory endpoint for an upload server and takes
// the first one offered.
func (g *Gofile) discoverServer(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+"/servers", nil)
	if err != nil {
		return "", fmt.Errorf("gofile: create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gofile: server discovery failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gofile: server discovery: %w", &StatusError{Code: resp.StatusCode})
	}

	var parsed gofileServersResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("gofile: malformed server directory: %w", err)
	}
	if parsed.Status != "ok" || len(parsed.Data.Servers) == 0 {
		return "", fmt.Errorf("gofile: no upload servers available (status %q)", parsed.Status)
	}

	return parsed.Data.Servers[0].Name, nil
}

// withEndpoints overrides the API endpoints (for testing).
func (g *Gofile) withEndpoints(apiBase, uploadURLFormat string, timeout time.Duration) *Gofile {
	g.apiBase = apiBase
	g.uploadURLFormat = uploadURLFormat
	g.client = &http.Client{Timeout: timeout}
	return g
}
