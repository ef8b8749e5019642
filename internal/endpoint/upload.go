package endpoint

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/groundupworks/wings/internal/models"
)

// uploadFile posts the file at path as a multipart form to url, with the
// given bearer token and extra form fields. A 401 response maps to
// models.ErrAuthRevoked so callers can unlink dead credentials. A missing
// file is a permanent failure reported as a plain error.
func uploadFile(ctx context.Context, client *http.Client, url, token, fieldName, path string, fields map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		var werr error
		defer func() { pw.CloseWithError(werr) }()
		for k, v := range fields {
			if werr = writer.WriteField(k, v); werr != nil {
				return
			}
		}
		part, perr := writer.CreateFormFile(fieldName, filepath.Base(path))
		if perr != nil {
			werr = perr
			return
		}
		if _, werr = io.Copy(part, file); werr != nil {
			return
		}
		werr = writer.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("upload %s rejected: %w", filepath.Base(path), models.ErrAuthRevoked)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("upload %s: unexpected status %d", filepath.Base(path), resp.StatusCode)
	}

	slog.Debug("uploadFile: upload complete", "url", url, "file", filepath.Base(path))
	return nil
}
