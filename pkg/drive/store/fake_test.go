package store_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jamesainslie/drive/pkg/drive/store"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// serverError mimics an API error envelope.
type serverError struct {
	status  int
	message string
}

func (e *serverError) Error() string         { return fmt.Sprintf("status %d: %s", e.status, e.message) }
func (e *serverError) ServerMessage() string { return e.message }

// fakeAPI is an in-memory server that counts calls.
type fakeAPI struct {
	mu       sync.Mutex
	nodes    map[string]*types.Node
	content  map[string][]byte
	seq      int
	calls    map[string]int
	failNext error
	gates    map[string]chan struct{} // list parent -> gate
	copySame bool                     // return the source id from Copy
}

func newFakeAPI(nodes ...*types.Node) *fakeAPI {
	f := &fakeAPI{
		nodes:   make(map[string]*types.Node),
		content: make(map[string][]byte),
		calls:   make(map[string]int),
		gates:   make(map[string]chan struct{}),
	}
	for _, n := range nodes {
		f.nodes[n.ID] = n.Clone()
	}
	return f
}

func (f *fakeAPI) begin(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAPI) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = err
}

// gate blocks List for parent until the returned function is called.
// The blocked call ignores cancellation, like a response already on the wire.
func (f *fakeAPI) gate(parent string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[parent] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeAPI) nextID() string {
	f.seq++
	return fmt.Sprintf("n%03d", f.seq)
}

func (f *fakeAPI) List(_ context.Context, opts store.ListOptions) ([]*types.Node, error) {
	key := types.ParentString(opts.ParentID)
	f.mu.Lock()
	gate := f.gates[key]
	delete(f.gates, key)
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	if err := f.begin("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Node
	for _, n := range f.nodes {
		if types.SameParent(n.ParentID, opts.ParentID) {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (f *fakeAPI) Get(_ context.Context, id string) (*types.Node, error) {
	if err := f.begin("get"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, types.ErrNotFound)
	}
	return n.Clone(), nil
}

func (f *fakeAPI) Upload(_ context.Context, files []store.UploadFile, parentID *string) ([]*types.Node, error) {
	if err := f.begin("upload"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Node
	for _, file := range files {
		data, _ := io.ReadAll(file.Content)
		n := &types.Node{
			ID:        f.nextID(),
			Name:      file.Name,
			Kind:      types.KindFile,
			ParentID:  types.CopyID(parentID),
			Size:      int64(len(data)),
			MIMEType:  file.MIMEType,
			Extension: types.ExtensionOf(file.Name),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		f.nodes[n.ID] = n
		f.content[n.ID] = data
		out = append(out, n.Clone())
	}
	return out, nil
}

func (f *fakeAPI) CreateFolder(_ context.Context, name string, parentID *string) (*types.Node, error) {
	if err := f.begin("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := &types.Node{ID: f.nextID(), Name: name, Kind: types.KindFolder, ParentID: types.CopyID(parentID), CreatedAt: time.Now()}
	f.nodes[n.ID] = n
	return n.Clone(), nil
}

func (f *fakeAPI) Rename(_ context.Context, id, name string) (*types.Node, error) {
	if err := f.begin("rename"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return nil, fmt.Errorf("rename %s: %w", id, types.ErrNotFound)
	}
	n.Name = name
	n.UpdatedAt = time.Now()
	return n.Clone(), nil
}

func (f *fakeAPI) Move(_ context.Context, id string, dest *string) (*types.Node, error) {
	if err := f.begin("move"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return nil, fmt.Errorf("move %s: %w", id, types.ErrNotFound)
	}
	n.ParentID = types.CopyID(dest)
	n.UpdatedAt = time.Now()
	return n.Clone(), nil
}

func (f *fakeAPI) Copy(_ context.Context, id string, dest *string) (*types.Node, error) {
	if err := f.begin("copy"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return nil, fmt.Errorf("copy %s: %w", id, types.ErrNotFound)
	}
	c := n.Clone()
	if !f.copySame {
		c.ID = f.nextID()
	}
	c.Name = n.Name + " (copy)"
	c.ParentID = types.CopyID(dest)
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.nodes[c.ID] = c
	return c.Clone(), nil
}

func (f *fakeAPI) Delete(_ context.Context, id string) error {
	if err := f.begin("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, types.ErrNotFound)
	}
	doomed := map[string]bool{id: true}
	for changed := true; changed; {
		changed = false
		for nid, n := range f.nodes {
			if !doomed[nid] && n.ParentID != nil && doomed[*n.ParentID] {
				doomed[nid] = true
				changed = true
			}
		}
	}
	for nid := range doomed {
		delete(f.nodes, nid)
	}
	return nil
}

func (f *fakeAPI) Download(_ context.Context, id string) (io.ReadCloser, error) {
	if err := f.begin("download"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.content[id]
	if !ok {
		return nil, fmt.Errorf("download %s: %w", id, types.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

var _ store.API = (*fakeAPI)(nil)

func folderNode(id, name string, parent *string) *types.Node {
	return &types.Node{ID: id, Name: name, Kind: types.KindFolder, ParentID: parent}
}

func fileNode(id, name string, parent *string) *types.Node {
	return &types.Node{ID: id, Name: name, Kind: types.KindFile, ParentID: parent, Size: 2048, MIMEType: "text/plain"}
}
