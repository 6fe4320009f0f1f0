package output

import (
	"bytes"
	"encoding/json"

	"github.com/jamesainslie/drive/pkg/drive/types"
)

// document is the structure shared by the json and yaml formatters.
type document struct {
	Folder   folderInfo `json:"folder" yaml:"folder"`
	Files    []nodeInfo `json:"files" yaml:"files"`
	Meta     metaInfo   `json:"meta" yaml:"meta"`
	Warnings []string   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type folderInfo struct {
	ID   *string  `json:"id" yaml:"id"`
	Name string   `json:"name" yaml:"name"`
	Path []string `json:"path,omitempty" yaml:"path,omitempty"`
}

// nodeInfo is a node plus its human-readable size.
type nodeInfo struct {
	types.Node `yaml:",inline"`

	SizeHuman string `json:"size_human" yaml:"size_human"`
}

type metaInfo struct {
	Folders   int   `json:"folders" yaml:"folders"`
	Files     int   `json:"files" yaml:"files"`
	TotalSize int64 `json:"total_size" yaml:"total_size"`
}

func buildDocument(l *Listing) document {
	files := make([]nodeInfo, len(l.Nodes))
	for i, n := range l.Nodes {
		files[i] = nodeInfo{Node: *n, SizeHuman: n.HumanSize()}
	}
	folders, count := l.Counts()
	return document{
		Folder:   folderInfo{ID: l.FolderID, Name: l.Folder, Path: l.Path},
		Files:    files,
		Meta:     metaInfo{Folders: folders, Files: count, TotalSize: l.TotalSize()},
		Warnings: l.Warnings,
	}
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, l *Listing) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(l))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter writes one compact node per line, for jq and friends.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, l *Listing) error {
	for _, n := range l.Nodes {
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

// Ensure JSONLFormatter implements Formatter.
var _ Formatter = (*JSONLFormatter)(nil)
