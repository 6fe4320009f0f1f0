// Package types provides the core data types for the drive client.
// It includes the file/folder node shared by the store, the tree builder and
// every backend, along with helpers for optional parents and file sizes.
package types

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// InlineThreshold is the largest upload whose content is carried inline as a
// data URL. Anything bigger gets a transient large-object reference.
const InlineThreshold = 5 * MiB

// RootLabel is the display name of the implicit root folder.
const RootLabel = "My Drive"

// Kind distinguishes files from folders. It never changes after creation.
type Kind string

// Node kinds.
const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindFile || k == KindFolder
}

// Node is a file or folder entry.
// A nil ParentID places the node at the root level.
type Node struct {
	// ID is assigned by the backend and never reused.
	ID string `json:"id" yaml:"id"`

	// Name is the display name; duplicates within a folder are allowed.
	Name string `json:"name" yaml:"name"`

	// Kind is file or folder.
	Kind Kind `json:"type" yaml:"type"`

	// ParentID references the containing folder, nil for root.
	ParentID *string `json:"parentId" yaml:"parentId"`

	// Size, MIMEType and Extension are only set for files.
	Size      int64  `json:"size,omitempty" yaml:"size,omitempty"`
	MIMEType  string `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	Extension string `json:"extension,omitempty" yaml:"extension,omitempty"`

	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`

	// ThumbnailURL and DownloadURL are content handles: a data URL, a blob
	// reference or an authenticated endpoint.
	ThumbnailURL string `json:"thumbnailUrl,omitempty" yaml:"thumbnailUrl,omitempty"`
	DownloadURL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool {
	return n.Kind == KindFolder
}

// HumanSize returns the file size formatted as a human-readable string.
func (n *Node) HumanSize() string {
	if n.IsFolder() {
		return "-"
	}
	return FormatSize(n.Size)
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.ParentID = CopyID(n.ParentID)
	return &c
}

// ID returns a pointer to a copy of id, for building optional parents.
func ID(id string) *string {
	return &id
}

// CopyID returns an independent copy of an optional id.
func CopyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// SameParent reports whether two optional parent references are equal.
func SameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// NormalizeParent converts wire-level root encodings to nil.
// Older servers send the literal "root" or an empty string for top-level nodes.
func NormalizeParent(id *string) *string {
	if id == nil {
		return nil
	}
	if *id == "" || *id == "root" {
		return nil
	}
	return CopyID(id)
}

// ParentString renders an optional parent for logs and output.
func ParentString(id *string) string {
	if id == nil {
		return "root"
	}
	return *id
}

// ExtensionOf returns the lower-cased extension of a file name without the dot.
func ExtensionOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ParseSize parses a human-readable size string and returns the size in bytes.
// It accepts plain byte counts and K, M, G and T suffixes with optional B or
// iB. Leading and trailing whitespace is ignored.
//
// Returns ErrInvalidSize if the format is not recognized.
// Returns ErrNegativeSize if the value is negative.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	unit := strings.ToUpper(matches[2])
	unit = strings.TrimSuffix(unit, "IB")
	unit = strings.TrimSuffix(unit, "B")

	var multiplier int64
	switch unit {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, unit)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string
// using binary (IEC) units.
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}
