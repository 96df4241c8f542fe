// Package vector implements the on-disk flat vector index: a dense,
// append-only arena of fixed-length embeddings with a parallel position->id
// mapping, searched by squared Euclidean distance.
//
// There is no per-entry update or delete; logical deletion goes through
// tombstones which Compact rewrites away. The arena and the mapping are
// persisted together (vectors.bin + ids.json) and the row count must equal
// the mapping length; Load re-validates this and fails fast on mismatch.
package vector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/obig20/docorganizer/internal/domain"
)

const (
	blobFile    = "vectors.bin"
	sidecarFile = "ids.json"
)

// Hit is a single nearest-neighbor result.
type Hit struct {
	Position int
	ID       string
	Distance float64
}

// sidecar is the persisted position->id mapping plus tombstoned positions.
type sidecar struct {
	IDs        []string `json:"ids"`
	Tombstones []int    `json:"tombstones,omitempty"`
}

// Store is a flat vector index. Writes are serialized; reads take a shared
// lock and never observe a partially written row.
type Store struct {
	dir string
	dim int

	mu         sync.RWMutex
	data       []float32
	ids        []string
	tombstones map[int]struct{}
}

// Open loads the store from dir, or starts empty when no files exist yet.
// A mapping/arena length mismatch is reported as domain.ErrIndexCorrupted.
func Open(dir string, dim int) (*Store, error) {
	if dim <= 0 {
		dim = domain.DefaultEmbeddingDim
	}
	s := &Store{
		dir:        dir,
		dim:        dim,
		tombstones: make(map[int]struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dim returns the vector dimension.
func (s *Store) Dim() int { return s.dim }

// Count returns the number of live (non-tombstoned) entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids) - len(s.tombstones)
}

// Rows returns the total number of arena rows, tombstoned included.
func (s *Store) Rows() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Add appends a vector for the given document id. Existing rows are never
// modified; indexing the same id again appends a new row and tombstones the
// old ones so the stale vector stops matching.
func (s *Store) Add(id string, vec []float32) error {
	if len(vec) != s.dim {
		return fmt.Errorf("got %d dimensions, want %d: %w", len(vec), s.dim, domain.ErrVectorDimMismatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for pos, existing := range s.ids {
		if existing != id {
			continue
		}
		if _, dead := s.tombstones[pos]; !dead {
			s.tombstones[pos] = struct{}{}
		}
	}

	s.data = append(s.data, vec...)
	s.ids = append(s.ids, id)
	return nil
}

// Delete tombstones every live row for id and returns how many were marked.
func (s *Store) Delete(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for pos, existing := range s.ids {
		if existing != id {
			continue
		}
		if _, dead := s.tombstones[pos]; dead {
			continue
		}
		s.tombstones[pos] = struct{}{}
		marked++
	}
	return marked
}

// Search returns up to k nearest neighbors by squared Euclidean distance,
// ascending. Tombstoned rows are skipped. When fewer than k live rows exist,
// all of them are returned.
func (s *Store) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("got %d dimensions, want %d: %w", len(query), s.dim, domain.ErrVectorDimMismatch)
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, len(s.ids))
	for pos, id := range s.ids {
		if _, dead := s.tombstones[pos]; dead {
			continue
		}
		row := s.data[pos*s.dim : (pos+1)*s.dim]
		var dist float64
		for i, q := range query {
			d := float64(q - row[i])
			dist += d * d
		}
		hits = append(hits, Hit{Position: pos, ID: id, Distance: dist})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Compact rewrites the arena excluding tombstoned rows, regenerates the
// position->id mapping, and persists the result. Returns the number of rows
// dropped.
func (s *Store) Compact() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tombstones) == 0 {
		return 0, s.persistLocked()
	}

	dropped := len(s.tombstones)
	data := make([]float32, 0, (len(s.ids)-dropped)*s.dim)
	ids := make([]string, 0, len(s.ids)-dropped)
	for pos, id := range s.ids {
		if _, dead := s.tombstones[pos]; dead {
			continue
		}
		data = append(data, s.data[pos*s.dim:(pos+1)*s.dim]...)
		ids = append(ids, id)
	}

	s.data = data
	s.ids = ids
	s.tombstones = make(map[int]struct{})

	return dropped, s.persistLocked()
}

// Persist writes the arena blob and the sidecar mapping together. It takes
// the write lock: concurrent callers share the same temp file paths, so
// persistence must be serialized.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	var buf bytes.Buffer
	if err := encodeBlob(&buf, s.dim, s.data); err != nil {
		return fmt.Errorf("encode vector blob: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, blobFile), buf.Bytes()); err != nil {
		return fmt.Errorf("write vector blob: %w", err)
	}

	side := sidecar{IDs: s.ids, Tombstones: sortedTombstones(s.tombstones)}
	raw, err := json.Marshal(side)
	if err != nil {
		return fmt.Errorf("encode id mapping: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, sidecarFile), raw); err != nil {
		return fmt.Errorf("write id mapping: %w", err)
	}
	return nil
}

func (s *Store) load() error {
	blobPath := filepath.Join(s.dir, blobFile)
	sidePath := filepath.Join(s.dir, sidecarFile)

	blobRaw, blobErr := os.ReadFile(blobPath)
	sideRaw, sideErr := os.ReadFile(sidePath)
	if os.IsNotExist(blobErr) && os.IsNotExist(sideErr) {
		return nil
	}
	if blobErr != nil {
		return fmt.Errorf("read vector blob: %w: %w", blobErr, domain.ErrIndexCorrupted)
	}
	if sideErr != nil {
		return fmt.Errorf("read id mapping: %w: %w", sideErr, domain.ErrIndexCorrupted)
	}

	dim, data, err := decodeBlob(bytes.NewReader(blobRaw))
	if err != nil {
		return err
	}
	var side sidecar
	if err := json.Unmarshal(sideRaw, &side); err != nil {
		return fmt.Errorf("decode id mapping: %w: %w", err, domain.ErrIndexCorrupted)
	}

	rows := 0
	if dim > 0 {
		rows = len(data) / dim
	}
	if rows != len(side.IDs) {
		return fmt.Errorf("vector blob has %d rows but mapping has %d ids: %w",
			rows, len(side.IDs), domain.ErrIndexCorrupted)
	}
	if dim != s.dim && rows > 0 {
		return fmt.Errorf("blob dimension %d does not match configured %d: %w",
			dim, s.dim, domain.ErrIndexCorrupted)
	}

	tombstones := make(map[int]struct{}, len(side.Tombstones))
	for _, pos := range side.Tombstones {
		if pos < 0 || pos >= rows {
			return fmt.Errorf("tombstone position %d out of range: %w", pos, domain.ErrIndexCorrupted)
		}
		tombstones[pos] = struct{}{}
	}

	s.data = data
	s.ids = side.IDs
	s.tombstones = tombstones
	return nil
}

func sortedTombstones(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for pos := range set {
		out = append(out, pos)
	}
	sort.Ints(out)
	return out
}

// writeFileAtomic writes via a temp file and rename so readers never observe
// a torn file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
