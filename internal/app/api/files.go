package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"

	"github.com/flexcrow/escrowctl/internal/app/domain/file"
	"github.com/flexcrow/escrowctl/internal/httputil"
)

func (c *Client) ListFiles(ctx context.Context, opts ListOptions) (Page[file.File], error) {
	raw, err := c.list(ctx, "/files", "file_items", opts.Query())
	if err != nil {
		return Page[file.File]{}, err
	}
	return decodePage[file.File](raw, "file_items")
}

func (c *Client) GetFile(ctx context.Context, id string) (file.File, error) {
	var f file.File
	err := c.get(ctx, "/files/"+escape(id), &f)
	return f, err
}

func (c *Client) DeleteFile(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/files/"+escape(id), nil, nil)
}

// Upload sends one file as the multipart "file" field.
func (c *Client) Upload(ctx context.Context, name, contentType string, r io.Reader) (file.Upload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return file.Upload{}, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return file.Upload{}, fmt.Errorf("copy upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return file.Upload{}, fmt.Errorf("close multipart writer: %w", err)
	}

	resp, err := c.http.DoRaw(ctx, http.MethodPost, "/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		return file.Upload{}, err
	}
	var out file.Upload
	if err := httputil.DecodeResponse(resp, &out); err != nil {
		return file.Upload{}, fmt.Errorf("upload %s: %w", name, err)
	}
	return out, nil
}
