// Package keyvec holds the key-to-embedding dictionary filled while running
// a model and persisted at the end of an epoch or export.
package keyvec

import (
	"bufio"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/cnclabs/ddi/internal/logging"
	"github.com/cnclabs/ddi/pkg/rnn"
)

// Entry is an embedding with an optional auxiliary label
type Entry struct {
	Vector []float64
	Label  string
}

// Registry maps drug ids to embeddings. Re-registering a key overwrites it.
type Registry struct {
	entries map[string]Entry
	log     logging.Sink
}

// New creates an empty registry. Mismatched re-registrations are reported to sink.
func New(sink logging.Sink) *Registry {
	if sink == nil {
		sink = logging.Nop
	}
	return &Registry{entries: make(map[string]Entry), log: sink}
}

// Register stores vectors[i] under keys[i]. When a key already holds a
// different vector a warning is logged and the new vector wins.
func (r *Registry) Register(keys []string, vectors [][]float64) error {
	if len(keys) != len(vectors) {
		return errors.Errorf("register: %d keys, %d vectors", len(keys), len(vectors))
	}
	for i, k := range keys {
		r.Put(k, vectors[i], "")
	}
	return nil
}

// Put stores a single entry, keeping an existing label when label is empty
func (r *Registry) Put(key string, vector []float64, label string) {
	v := append([]float64(nil), vector...)
	if prev, exists := r.entries[key]; exists {
		if !rnn.VectorEqual(prev.Vector, v) {
			logging.Logf(r.log, logging.Warn, "key %s re-registered with a different embedding (sum diff %.6g)",
				key, rnn.Sum(prev.Vector)-rnn.Sum(v))
		}
		if label == "" {
			label = prev.Label
		}
	}
	r.entries[key] = Entry{Vector: v, Label: label}
}

// Get returns the entry stored under key
func (r *Registry) Get(key string) (Entry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// Len returns the number of keys
func (r *Registry) Len() int {
	return len(r.entries)
}

// Keys returns the keys in lexical order
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the registry with gob, gzip-compressed when path ends in .gz
func (r *Registry) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer file.Close()

	if strings.HasSuffix(path, ".gz") {
		zw := gzip.NewWriter(file)
		if err := gob.NewEncoder(zw).Encode(r.entries); err != nil {
			return errors.Wrapf(err, "encoding %s", path)
		}
		if err := zw.Close(); err != nil {
			return errors.Wrapf(err, "compressing %s", path)
		}
	} else if err := gob.NewEncoder(file).Encode(r.entries); err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", path)
	}
	logging.Logf(r.log, logging.Info, "%d number of unique keys saved to <%s>", len(r.entries), path)
	return nil
}

// Load reads a registry written by Save
func Load(path string, sink logging.Sink) (*Registry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()

	var rd io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(file)
		if err != nil {
			return nil, errors.Wrapf(err, "decompressing %s", path)
		}
		defer zr.Close()
		rd = zr
	}

	r := New(sink)
	if err := gob.NewDecoder(rd).Decode(&r.entries); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return r, nil
}

// SaveText writes the embeddings as text: a "<count> <dim>" header followed
// by one "key v1 v2 ..." line per key.
func (r *Registry) SaveText(path string, dim int) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "%d %d\n", len(r.entries), dim)
	for _, k := range r.Keys() {
		fmt.Fprintf(w, "%s", k)
		for _, v := range r.entries[k].Vector {
			fmt.Fprintf(w, " %.6f", v)
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", path)
	}
	logging.Logf(r.log, logging.Info, "\tSave to <%s>", path)
	return nil
}
