package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Permission is the access a share grants.
type Permission string

// Share permissions.
const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool {
	return p == PermissionView || p == PermissionEdit
}

// Share grants a user access to a folder.
type Share struct {
	ID         string     `json:"id,omitempty" yaml:"id,omitempty"`
	FolderID   string     `json:"folderId" yaml:"folderId"`
	UserID     string     `json:"userId" yaml:"userId"`
	Permission Permission `json:"permission" yaml:"permission"`
	CreatedAt  time.Time  `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// ShareFolder grants userID access to folderID.
func (c *Client) ShareFolder(ctx context.Context, folderID, userID string, perm Permission) (*Share, error) {
	if !perm.Valid() {
		return nil, fmt.Errorf("unknown permission %q", perm)
	}
	body, err := json.Marshal(struct {
		UserID     string     `json:"userId"`
		Permission Permission `json:"permission"`
	}{userID, perm})
	if err != nil {
		return nil, err
	}

	var share Share
	path := "/api/folders/" + url.PathEscape(folderID) + "/shares"
	if err := c.do(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json", &share); err != nil {
		return nil, err
	}
	if share.FolderID == "" {
		share.FolderID = folderID
	}
	return &share, nil
}

// UnshareFolder revokes userID's access to folderID.
func (c *Client) UnshareFolder(ctx context.Context, folderID, userID string) error {
	path := "/api/folders/" + url.PathEscape(folderID) + "/shares/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodDelete, path, nil, "", nil)
}

// ListShares returns the shares of folderID.
func (c *Client) ListShares(ctx context.Context, folderID string) ([]Share, error) {
	var shares []Share
	path := "/api/folders/" + url.PathEscape(folderID) + "/shares"
	if err := c.do(ctx, http.MethodGet, path, nil, "", &shares); err != nil {
		return nil, err
	}
	for i := range shares {
		if shares[i].FolderID == "" {
			shares[i].FolderID = folderID
		}
	}
	return shares, nil
}
