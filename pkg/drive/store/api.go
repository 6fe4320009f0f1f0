package store

import (
	"context"
	"io"

	"github.com/jamesainslie/drive/pkg/drive/types"
)

// API is the remote collaborator the store drives. The HTTP client and the
// offline backend both implement it. Implementations report missing targets
// with an error wrapping types.ErrNotFound and expired credentials with
// types.ErrUnauthorized.
type API interface {
	// List returns the children of opts.ParentID (nil = root).
	List(ctx context.Context, opts ListOptions) ([]*types.Node, error)

	// Get returns a single node.
	Get(ctx context.Context, id string) (*types.Node, error)

	// Upload stores files under parentID and returns the created nodes.
	Upload(ctx context.Context, files []UploadFile, parentID *string) ([]*types.Node, error)

	// CreateFolder creates a folder under parentID.
	CreateFolder(ctx context.Context, name string, parentID *string) (*types.Node, error)

	// Rename changes a node's name.
	Rename(ctx context.Context, id, name string) (*types.Node, error)

	// Move reparents a node; a nil destination moves it to the root.
	Move(ctx context.Context, id string, destinationID *string) (*types.Node, error)

	// Copy duplicates a node under destinationID and returns the copy.
	Copy(ctx context.Context, id string, destinationID *string) (*types.Node, error)

	// Delete removes a node and, for folders, everything below it.
	Delete(ctx context.Context, id string) error

	// Download streams a file's content.
	Download(ctx context.Context, id string) (io.ReadCloser, error)
}

// ListOptions selects a folder listing.
type ListOptions struct {
	ParentID *string

	// UserID lists another user's drive (admin only). Empty means the caller.
	UserID string
}

// UploadFile is one payload of an upload batch.
type UploadFile struct {
	Name     string
	MIMEType string
	Size     int64
	Content  io.Reader
}
