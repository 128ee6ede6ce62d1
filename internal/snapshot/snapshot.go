// Package snapshot persists fully paged catalog listings and sanitized raw
// provider pages in a cache backend.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/cache"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/catalog"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/pager"
)

const (
	snapshotPrefix = "snapshots/"
	rawPrefix      = "raw/"
)

type Snapshot struct {
	Name    string         `json:"name"`
	Key     pager.Key      `json:"key"`
	TakenAt time.Time      `json:"takenAt"`
	Items   []catalog.Item `json:"items"`
}

// Name is the storage name of a listing, e.g. "category/pokemon;sort=name_desc".
func Name(key pager.Key) string {
	kind, subject := "category", key.Slug
	if key.Search != "" {
		kind, subject = "search", strings.ToLower(key.Search)
	}
	var b strings.Builder
	b.WriteString(kind + "/" + slugify(subject))
	for _, kv := range [][2]string{{"group", key.Group}, {"stock", key.Stock}, {"sort", key.Sort}} {
		if kv[1] != "" {
			b.WriteString(";" + kv[0] + "=" + slugify(kv[1]))
		}
	}
	return b.String()
}

// slugify keeps names safe as file paths, blob names and URL segments.
func slugify(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, s)
}

type Store struct {
	cache cache.ListCache
}

func NewStore(c cache.ListCache) *Store {
	return &Store{cache: c}
}

// Save writes snap under its name, replacing any earlier snapshot.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if snap.Name == "" {
		snap.Name = Name(snap.Key)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.Name, err)
	}
	if err := s.cache.Put(ctx, snapshotPrefix+snap.Name+".json", string(data), cache.Unconditional()); err != nil {
		return fmt.Errorf("store snapshot %s: %w", snap.Name, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, name string) (*Snapshot, error) {
	data, err := cache.GetString(ctx, s.cache, snapshotPrefix+strings.TrimSuffix(name, ".json")+".json")
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return &snap, nil
}

// List returns snapshot names without the .json suffix.
func (s *Store) List(ctx context.Context) ([]string, error) {
	keys, err := s.cache.List(ctx, snapshotPrefix, "")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if name, ok := strings.CutSuffix(k, ".json"); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// SaveRaw stores one provider page after rewriting unsafe integers. Pages of
// a run are immutable, so an existing page is left alone.
func (s *Store) SaveRaw(ctx context.Context, run string, page int, raw []byte) (string, error) {
	clean, err := catalog.SanitizeJSON(raw)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s%s/%04d.json", rawPrefix, run, page)
	err = s.cache.Put(ctx, key, string(clean), cache.IfNoneMatch())
	if errors.Is(err, cache.ErrAlreadyExists) {
		slog.WarnContext(ctx, "raw page already stored", "key", key)
		return key, nil
	}
	return key, err
}

// Register serves stored snapshots read-only.
func (s *Store) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /snapshots", s.handleList)
	mux.HandleFunc("GET /snapshots/{name...}", s.handleGet)
}

func (s *Store) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	names, err := s.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list snapshots", "error", err)
		http.Error(w, "unable to list snapshots", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string][]string{"snapshots": names}); err != nil {
		slog.ErrorContext(ctx, "failed to write snapshot list", "error", err)
	}
}

func (s *Store) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("name")
	snap, err := s.Load(ctx, name)
	if errors.Is(err, cache.ErrNotFound) {
		http.Error(w, "snapshot not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to load snapshot", "name", name, "error", err)
		http.Error(w, "unable to load snapshot", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		slog.ErrorContext(ctx, "failed to write snapshot", "error", err)
	}
}
