// Package manifest persists a record of generated outputs between runs.
//
// The manifest lives in the cache directory as zstd-compressed JSON. Each
// entry describes one output file (relative to the output directory) and
// whether it has been published to the CDN since it was last generated.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// FileName is the manifest file name inside the cache directory.
const FileName = "manifest.json.zst"

const schemaVersion = 1

// Entry describes one generated output.
type Entry struct {
	Source         string     `json:"source"`
	Output         string     `json:"output"`
	Format         string     `json:"format"`
	Width          int        `json:"width,omitempty"`
	OriginalSize   int64      `json:"originalSize"`
	OptimizedSize  int64      `json:"optimizedSize"`
	SavingsPercent float64    `json:"savingsPercent"`
	GeneratedAt    time.Time  `json:"generatedAt"`
	UploadedAt     *time.Time `json:"uploadedAt,omitempty"`
}

// Pending reports whether the entry still needs publishing.
func (e Entry) Pending() bool {
	return e.UploadedAt == nil
}

type document struct {
	Version   int       `json:"version"`
	RunID     string    `json:"runId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	Entries   []Entry   `json:"entries"`
}

// Manifest is the in-memory manifest. It is not safe for concurrent use.
type Manifest struct {
	path      string
	outputDir string
	entries   map[string]*Entry
	dirty     bool
	now       func() time.Time
}

// Load reads the manifest from cacheDir. A missing file yields an empty
// manifest. Entries whose output file no longer exists under outputDir are
// dropped.
func Load(cacheDir, outputDir string) (*Manifest, error) {
	m := New(cacheDir, outputDir)

	f, err := os.Open(m.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", m.path).Msg("No manifest yet, starting empty")
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	doc, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", m.path, err)
	}
	if doc.Version != schemaVersion {
		log.Warn().Int("version", doc.Version).Str("path", m.path).Msg("Unknown manifest version, starting empty")
		m.dirty = true
		return m, nil
	}

	for i := range doc.Entries {
		e := doc.Entries[i]
		m.entries[e.Output] = &e
	}
	m.prune()

	log.Debug().Str("path", m.path).Int("entries", len(m.entries)).Msg("Loaded manifest")
	return m, nil
}

// New returns an empty manifest that saves into cacheDir.
func New(cacheDir, outputDir string) *Manifest {
	return &Manifest{
		path:      filepath.Join(cacheDir, FileName),
		outputDir: outputDir,
		entries:   make(map[string]*Entry),
		now:       time.Now,
	}
}

func decode(r io.Reader) (document, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return document{}, err
	}
	defer dec.Close()

	var doc document
	if err := json.NewDecoder(dec).Decode(&doc); err != nil {
		return document{}, err
	}
	return doc, nil
}

// prune drops entries whose output is gone.
func (m *Manifest) prune() {
	for key := range m.entries {
		if _, err := os.Stat(m.OutputPath(key)); err != nil {
			delete(m.entries, key)
			m.dirty = true
		}
	}
}

// OutputPath joins an entry's output onto the output directory.
func (m *Manifest) OutputPath(output string) string {
	return filepath.Join(m.outputDir, filepath.FromSlash(output))
}

// Put records a freshly generated output, replacing any previous entry and
// resetting its upload state.
func (m *Manifest) Put(e Entry) {
	if e.GeneratedAt.IsZero() {
		e.GeneratedAt = m.now()
	}
	e.UploadedAt = nil
	m.entries[e.Output] = &e
	m.dirty = true
}

// Has reports whether output is recorded.
func (m *Manifest) Has(output string) bool {
	_, ok := m.entries[output]
	return ok
}

// entry returns the entry for output.
func (m *Manifest) entry(output string) (Entry, bool) {
	e, ok := m.entries[output]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (m *Manifest) size() int {
	return len(m.entries)
}

// Entries returns all entries ordered by output path.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.Output < b.Output:
			return -1
		case a.Output > b.Output:
			return 1
		}
		return 0
	})
	return out
}

// PendingUploads returns the entries not yet published, ordered by output path.
func (m *Manifest) PendingUploads() []Entry {
	var out []Entry
	for _, e := range m.Entries() {
		if e.Pending() {
			out = append(out, e)
		}
	}
	return out
}

// MarkUploaded records that output was published at.
func (m *Manifest) MarkUploaded(output string, at time.Time) {
	if e, ok := m.entries[output]; ok {
		e.UploadedAt = &at
		m.dirty = true
	}
}

// Save writes the manifest if it changed since Load. The file is written to a
// temporary name and renamed so a crash never leaves a truncated manifest.
func (m *Manifest) Save(runID string) error {
	if !m.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create manifest temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	doc := document{
		Version:   schemaVersion,
		RunID:     runID,
		UpdatedAt: m.now().UTC(),
		Entries:   m.Entries(),
	}
	if err := encode(tmp, doc); err != nil {
		tmp.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}

	m.dirty = false
	log.Debug().Str("path", m.path).Int("entries", len(doc.Entries)).Msg("Saved manifest")
	return nil
}

func encode(w io.Writer, doc document) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}
	if err := json.NewEncoder(enc).Encode(doc); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
