package sitemap

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/samber/lo"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/categories"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/snapshot"
)

type lister interface {
	Categories() []categories.Category
	Groups() []categories.Group
}

type Server struct {
	site      string
	lister    lister
	snapshots *snapshot.Store
}

const robots = `# Allow all search engines to crawl the site
User-agent: *
Allow: /

# Sitemap location
Sitemap: %s/sitemap.xml
`

// New serves a sitemap of site's category pages plus every product found in
// stored snapshots. snapshots may be nil.
func New(site string, l lister, snapshots *snapshot.Store) *Server {
	return &Server{site: site, lister: l, snapshots: snapshots}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /sitemap.xml", s.handleSitemap)
	mux.HandleFunc("GET /robots.txt", s.handleRobots)
}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var entries []urlEntry
	for _, c := range s.lister.Categories() {
		entries = append(entries, urlEntry{Loc: s.site + "/category/" + url.PathEscape(c.Slug)})
	}
	for _, g := range s.lister.Groups() {
		entries = append(entries, urlEntry{Loc: s.site + "/category/" + url.PathEscape(g.Slug)})
	}

	products, err := s.products(r)
	if err != nil {
		http.Error(w, "failed to load sitemap", http.StatusInternalServerError)
		slog.ErrorContext(ctx, "failed to read sitemap products", "error", err)
		return
	}
	entries = append(entries, products...)
	slog.InfoContext(ctx, "serving sitemap", "count", len(entries), "products", len(products))

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		slog.ErrorContext(ctx, "failed to write sitemap header", "error", err)
		return
	}
	if err := xml.NewEncoder(w).Encode(urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  entries,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to encode sitemap", "error", err)
	}
}

// products lists each product once, dated by the newest snapshot it was in.
func (s *Server) products(r *http.Request) ([]urlEntry, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	ctx := r.Context()
	names, err := s.snapshots.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]int{}
	var entries []urlEntry
	for _, name := range names {
		snap, err := s.snapshots.Load(ctx, name)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable snapshot", "name", name, "error", err)
			continue
		}
		lastMod := snap.TakenAt.UTC().Format("2006-01-02")
		for _, it := range snap.Items {
			if i, ok := seen[it.ID]; ok {
				entries[i].LastMod = lo.Max([]string{entries[i].LastMod, lastMod})
				continue
			}
			seen[it.ID] = len(entries)
			entries = append(entries, urlEntry{Loc: s.site + "/product/" + url.PathEscape(it.ID), LastMod: lastMod})
		}
	}
	return entries, nil
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	full := fmt.Sprintf(robots, s.site)
	if _, err := w.Write([]byte(full)); err != nil {
		slog.ErrorContext(r.Context(), "failed to write robots.txt", "error", err)
	}
}
