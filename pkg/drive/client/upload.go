package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/jamesainslie/drive/pkg/drive/store"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// uploadField is the multipart field every file is sent under.
const uploadField = "files[]"

// Upload sends files in one multipart request. The body is streamed, so
// large files are never held in memory.
func (c *Client) Upload(ctx context.Context, files []store.UploadFile, parentID *string) ([]*types.Node, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUpload(mw, files, parentID))
	}()

	var list nodeList
	err := c.do(ctx, http.MethodPost, "/api/files/upload", pr, mw.FormDataContentType(), &list)
	// Unblock the writer if the request ended before the body was consumed.
	_ = pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return nil, err
	}
	return wireNodes(list), nil
}

func writeUpload(mw *multipart.Writer, files []store.UploadFile, parentID *string) error {
	if parentID != nil {
		if err := mw.WriteField("parentId", *parentID); err != nil {
			return err
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, f.Name))
		mimeType := f.MIMEType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		h.Set("Content-Type", mimeType)

		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if f.Content != nil {
			if _, err := io.Copy(part, f.Content); err != nil {
				return fmt.Errorf("upload %s: %w", f.Name, err)
			}
		}
	}
	return mw.Close()
}
