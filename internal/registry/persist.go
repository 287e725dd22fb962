package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"jobscout/internal/errors"
	"jobscout/internal/provider"
)

// snapshot is the on-disk layout of the registry
type snapshot struct {
	Sources snapshotSources `json:"sources"`
}

type snapshotEntry struct {
	Module   string         `json:"module"`
	Class    string         `json:"class"`
	Enabled  bool           `json:"enabled"`
	Priority int            `json:"priority"`
	Weight   int            `json:"weight"`
	Config   map[string]any `json:"config"`
}

// defaultSnapshotEntry holds the values used for fields an entry omits.
func defaultSnapshotEntry() snapshotEntry {
	return snapshotEntry{Enabled: true, Priority: 1, Weight: 1}
}

type namedEntry struct {
	Name  string
	Entry snapshotEntry
}

// snapshotSources is the "sources" object with its key order kept. Keys are
// written in registration order and registered again in file order, so
// priority ties resolve the same way after a reload.
type snapshotSources []namedEntry

func (s snapshotSources) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(n.Entry)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *snapshotSources) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("sources must be an object, got %v", tok)
	}

	out := snapshotSources{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		entry := defaultSnapshotEntry()
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("source %q: %w", name, err)
		}
		out = append(out, namedEntry{Name: name, Entry: entry})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// SaveConfig writes every source to path, replacing the file atomically.
func (r *Registry) SaveConfig(path string) error {
	var snap snapshot
	for _, rec := range r.registrationOrder() {
		info := rec.Info()
		snap.Sources = append(snap.Sources, namedEntry{Name: info.Name, Entry: snapshotEntry{
			Module:   info.Module,
			Class:    info.Class,
			Enabled:  info.Enabled,
			Priority: info.Priority,
			Weight:   info.Weight,
			Config:   info.Config,
		}})
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternal, "failed to encode registry snapshot", err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotWritable, fmt.Sprintf("failed to write %s", path), err).
			WithContext("path", path)
	}

	if stat, err := os.Stat(path); err == nil {
		r.writesMu.Lock()
		r.lastWrite[filepath.Clean(path)] = stat.ModTime()
		r.writesMu.Unlock()
	}

	if r.logger != nil {
		r.logger.Info("Registry snapshot saved", "path", path, "sources", len(snap.Sources))
	}
	r.changed("save", path)
	return nil
}

func (r *Registry) registrationOrder() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadConfig replaces the registry contents with the snapshot at path. Every
// entry is resolved before anything is swapped, so a failed load leaves the
// registry untouched.
func (r *Registry) LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		code := errors.ErrCodeFileNotReadable
		if os.IsNotExist(err) {
			code = errors.ErrCodeFileNotFound
		}
		return errors.NewIOError(code, fmt.Sprintf("failed to read %s", path), err).WithContext("path", path)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshotParseError(path, err)
	}
	if snap.Sources == nil {
		return snapshotParseError(path, nil)
	}

	records, err := r.resolve(snap)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.records = make(map[string]*Record, len(records))
	r.nextSeq = 0
	for _, rec := range records {
		r.putLocked(rec)
	}
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Info("Registry snapshot loaded", "path", path, "sources", len(records))
	}
	r.changed("load", path)
	return nil
}

func snapshotParseError(path string, cause error) error {
	return errors.NewRegistryError(errors.ErrCodeParseError, "malformed registry snapshot: sources", cause).
		WithContext("field", "sources").
		WithContext("path", path)
}

// resolve builds records in file order. Entries that omit enabled, priority
// or weight get true, 1 and 1.
func (r *Registry) resolve(snap snapshot) ([]*Record, error) {
	records := make([]*Record, 0, len(snap.Sources))
	seen := make(map[string]bool, len(snap.Sources))
	for _, source := range snap.Sources {
		entry := source.Entry
		name := NormalizeName(source.Name)
		if seen[name] {
			return nil, errors.InvalidValue("name", source.Name).WithContext("reason", "duplicate after normalization")
		}
		seen[name] = true

		p, err := r.currentFactory().Build(provider.Ref{Module: entry.Module, Class: entry.Class})
		if err != nil {
			return nil, addName(err, name)
		}
		if err := validateRecord(name, p, entry.Priority, entry.Weight); err != nil {
			return nil, err
		}

		records = append(records, &Record{
			Name:     name,
			Provider: p,
			Enabled:  entry.Enabled,
			Priority: entry.Priority,
			Weight:   entry.Weight,
			Config:   normalizeConfig(entry.Config),
		})
	}
	return records, nil
}
