package local

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/drive/pkg/drive/blob"
	"github.com/jamesainslie/drive/pkg/drive/types"
)

// Key layout:
//
//	drive:files     the whole tree as {"files": [...]}
//	c:<id>          content of a file
//	m:__schema__    schema record
const (
	recordKey     = "drive:files"
	contentPrefix = "c:"
	schemaKey     = "m:__schema__"
)

// CurrentSchemaVersion is the layout this package writes.
const CurrentSchemaVersion = 1

// ErrSchemaTooNew is returned when the database was written by a newer version.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

// Schema holds database schema information.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// record is the persisted form of the tree.
type record struct {
	Files []*types.Node `json:"files"`
}

func contentKey(id string) []byte {
	return []byte(contentPrefix + id)
}

func openDB(path string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil // Disable badger logging

	return badger.Open(opts)
}

// readSchema returns the stored schema, or nil for a fresh database.
func readSchema(db *badger.DB) (*Schema, error) {
	var schema *Schema
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			schema = &Schema{}
			return json.Unmarshal(val, schema)
		})
	})
	return schema, err
}

// ensureSchema stamps a fresh database and rejects one from a newer build.
func ensureSchema(db *badger.DB) error {
	schema, err := readSchema(db)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if schema != nil {
		if schema.Version > CurrentSchemaVersion {
			return fmt.Errorf("%w: version %d", ErrSchemaTooNew, schema.Version)
		}
		return nil
	}

	data, err := json.Marshal(&Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now()})
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaKey), data)
	})
}

// readRecord loads the tree. A missing record is an empty tree.
func readRecord(db *badger.DB) (map[string]*types.Node, error) {
	nodes := make(map[string]*types.Node)
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var rec record
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", recordKey, err)
			}
			for _, n := range rec.Files {
				if n == nil || n.ID == "" {
					continue
				}
				n.ParentID = types.NormalizeParent(n.ParentID)
				nodes[n.ID] = n
			}
			return nil
		})
	})
	return nodes, err
}

// change is one mutation to write.
type change struct {
	nodes   map[string]*types.Node
	put     map[string][]byte
	deleted []string
}

// write rewrites the tree record and applies content changes in one transaction.
func write(db *badger.DB, c change) error {
	files := make([]*types.Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		if blob.IsRef(n.DownloadURL) {
			// References die with the process; Open registers them again.
			n = n.Clone()
			n.DownloadURL = ""
		}
		files = append(files, n)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })

	data, err := json.Marshal(record{Files: files})
	if err != nil {
		return fmt.Errorf("encode %s: %w", recordKey, err)
	}

	return db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(recordKey), data); err != nil {
			return err
		}
		for id, content := range c.put {
			if err := txn.Set(contentKey(id), content); err != nil {
				return err
			}
		}
		for _, id := range c.deleted {
			if err := txn.Delete(contentKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// readContent returns the stored bytes of id.
func readContent(db *badger.DB, id string) ([]byte, error) {
	var data []byte
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(contentKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("content of %s: %w", id, types.ErrNotFound)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}
