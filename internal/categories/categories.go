// Package categories maps storefront URL slugs to Square category IDs.
package categories

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultYAML []byte

// ErrNotFound is returned when a slug names neither a category nor a group.
var ErrNotFound = errors.New("category or group not found")

// Domains lists the catalog domains in display order.
var Domains = []string{"general", "collectibles", "supplies", "events"}

type Category struct {
	Slug             string `yaml:"slug" json:"slug"`
	SquareCategoryID string `yaml:"id" json:"squareCategoryId"`
	Name             string `yaml:"name" json:"name"`
	Domain           string `yaml:"-" json:"domain"`
}

type Group struct {
	Slug    string   `yaml:"slug" json:"slug"`
	Name    string   `yaml:"name" json:"name"`
	Members []string `yaml:"members" json:"members"`
}

type file struct {
	Domains map[string][]Category `yaml:"domains"`
	Groups  []Group               `yaml:"groups"`
}

// Kind tags a Target as a single category or a group of categories.
type Kind int

const (
	KindSingle Kind = iota + 1
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindGroup:
		return "group"
	}
	return "unknown"
}

// Target is the result of resolving a slug: either Single(id) or Group(ids).
type Target struct {
	kind   Kind
	slug   string
	domain string
	ids    []string
}

func Single(slug, domain, id string) Target {
	return Target{kind: KindSingle, slug: slug, domain: domain, ids: []string{id}}
}

func GroupOf(slug string, ids ...string) Target {
	return Target{kind: KindGroup, slug: slug, ids: slices.Clone(ids)}
}

func (t Target) Kind() Kind     { return t.kind }
func (t Target) Slug() string   { return t.slug }
func (t Target) Domain() string { return t.domain }

// CategoryIDs returns the provider category IDs in configured order.
// Groups may repeat IDs; the provider query de-duplicates results.
func (t Target) CategoryIDs() []string { return slices.Clone(t.ids) }

// Resolver is an immutable slug index built once at startup.
type Resolver struct {
	index      map[string]Target
	categories []Category
	groups     []Group
}

// Default loads the embedded storefront category table.
func Default() (*Resolver, error) {
	return Load(bytes.NewReader(defaultYAML))
}

// Load parses a category table. Duplicate slugs, unknown domains, and groups
// naming unknown members are rejected so lookups never depend on scan order.
func Load(r io.Reader) (*Resolver, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode category table: %w", err)
	}

	res := &Resolver{index: map[string]Target{}}
	for domain := range f.Domains {
		if !slices.Contains(Domains, domain) {
			return nil, fmt.Errorf("unknown category domain %q", domain)
		}
	}

	bySlug := map[string]Category{}
	for _, domain := range Domains {
		for _, c := range f.Domains[domain] {
			c.Slug = strings.TrimSpace(c.Slug)
			c.Domain = domain
			if c.Slug == "" || c.SquareCategoryID == "" {
				return nil, fmt.Errorf("category in %s needs both slug and id", domain)
			}
			if prev, dup := bySlug[c.Slug]; dup {
				return nil, fmt.Errorf("duplicate category slug %q in %s and %s", c.Slug, prev.Domain, domain)
			}
			bySlug[c.Slug] = c
			res.categories = append(res.categories, c)
			res.index[c.Slug] = Single(c.Slug, domain, c.SquareCategoryID)
		}
	}

	for _, g := range f.Groups {
		if _, dup := res.index[g.Slug]; dup {
			return nil, fmt.Errorf("group slug %q collides with an existing slug", g.Slug)
		}
		if len(g.Members) == 0 {
			return nil, fmt.Errorf("group %q has no members", g.Slug)
		}
		ids := make([]string, 0, len(g.Members))
		for _, member := range g.Members {
			c, ok := bySlug[member]
			if !ok {
				return nil, fmt.Errorf("group %q references unknown category %q", g.Slug, member)
			}
			ids = append(ids, c.SquareCategoryID)
		}
		res.groups = append(res.groups, g)
		res.index[g.Slug] = GroupOf(g.Slug, ids...)
	}
	return res, nil
}

// Resolve returns the target for an exact, case-sensitive slug.
func (r *Resolver) Resolve(slug string) (Target, error) {
	t, ok := r.index[slug]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrNotFound, slug)
	}
	return t, nil
}

func (r *Resolver) Categories() []Category { return slices.Clone(r.categories) }

func (r *Resolver) Groups() []Group {
	return lo.Map(r.groups, func(g Group, _ int) Group {
		g.Members = slices.Clone(g.Members)
		return g
	})
}

// IsDomain reports whether name is one of the catalog domains.
func IsDomain(name string) bool {
	return slices.Contains(Domains, name)
}
