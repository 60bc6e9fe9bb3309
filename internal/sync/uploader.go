package sync

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Uploader pushes dataset files to the ingestion server's sync endpoint
type Uploader struct {
	serverURL string
	apiKey    string
	client    *http.Client
}

// NewUploader creates an uploader targeting the given server base URL
func NewUploader(serverURL, apiKey string, timeout time.Duration) *Uploader {
	return &Uploader{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		client:    &http.Client{Timeout: timeout},
	}
}

// Upload sends one candidate file as multipart form data. A non-2xx response
// is an error; the caller leaves the marker absent so a later pass retries.
func (u *Uploader) Upload(ctx context.Context, c Candidate) error {
	file, err := os.Open(c.AbsPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.AbsPath, err)
	}
	defer file.Close()

	// Stream the multipart body through a pipe so large videos never sit
	// fully in memory
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := writeForm(writer, c, file)
		writer.Close()
		pw.CloseWithError(err)
	}()

	url := u.serverURL + "/api/v1/upload/sync"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.apiKey != "" {
		req.Header.Set("X-API-Key", u.apiKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", c.RelativePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("upload %s: server returned %d: %s", c.RelativePath, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func writeForm(writer *multipart.Writer, c Candidate, file *os.File) error {
	if err := writer.WriteField("dataset_name", c.Dataset); err != nil {
		return err
	}
	if err := writer.WriteField("relative_path", c.RelativePath); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("file", filepath.Base(c.AbsPath))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}
