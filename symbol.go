package cargomcp

import (
	"fmt"
	"strings"
	"time"
)

// SymbolKind is the kind of a documented item.
type SymbolKind string

// Symbol kinds, named after rustdoc's page prefixes.
const (
	SymbolCrate      SymbolKind = "crate"
	SymbolModule     SymbolKind = "mod"
	SymbolStruct     SymbolKind = "struct"
	SymbolEnum       SymbolKind = "enum"
	SymbolUnion      SymbolKind = "union"
	SymbolTrait      SymbolKind = "trait"
	SymbolTraitAlias SymbolKind = "traitalias"
	SymbolFunction   SymbolKind = "fn"
	SymbolMacro      SymbolKind = "macro"
	SymbolType       SymbolKind = "type"
	SymbolConstant   SymbolKind = "constant"
	SymbolStatic     SymbolKind = "static"
	SymbolAttribute  SymbolKind = "attr"
	SymbolDerive     SymbolKind = "derive"
	SymbolPrimitive  SymbolKind = "primitive"
	SymbolKeyword    SymbolKind = "keyword"
)

// ManifestPage is one record of a generated documentation manifest: a page
// and the logical path it documents. Manifest pages are the single source
// of truth a DocIndex is derived from.
type ManifestPage struct {
	Crate        string     `json:"crate"`
	LogicalPath  string     `json:"logicalPath"`
	Kind         SymbolKind `json:"kind"`
	PhysicalPath string     `json:"physicalPath"`

	// SourceAnchor is the source location the page links to. Pages sharing
	// a non-empty anchor document the same item under different paths.
	SourceAnchor string `json:"sourceAnchor,omitempty"`

	// Reexport marks a record that names another logical path for the page
	// at PhysicalPath instead of describing a page of its own.
	Reexport bool `json:"reexport,omitempty"`
}

// SymbolEntry is one documented item as returned to callers.
// PhysicalPath is opaque and must be passed back verbatim.
type SymbolEntry struct {
	Crate        string     `json:"crate"`
	LogicalPath  string     `json:"logicalPath"`
	Kind         SymbolKind `json:"kind"`
	PhysicalPath string     `json:"physicalPath"`

	// Aliases are the other logical paths documenting the same item.
	Aliases []string `json:"aliases,omitempty"`
}

// MatchKind says how a symbol entry matched a query.
type MatchKind string

// Match kinds, in the order they are tried.
const (
	MatchExact    MatchKind = "exact"
	MatchReexport MatchKind = "reexport"
	MatchPrefix   MatchKind = "prefix"
)

// SymbolMatch is a symbol entry matched by a query.
type SymbolMatch struct {
	SymbolEntry
	Match MatchKind `json:"match"`
}

// IndexVersion identifies one build of a project's documentation index.
type IndexVersion struct {
	Seq  uint64 `json:"seq"`
	Hash string `json:"hash"`
}

// String returns the version token handed to callers.
func (v IndexVersion) String() string {
	return fmt.Sprintf("%d-%s", v.Seq, v.Hash)
}

// IndexSnapshot is the persisted form of a documentation index: the crate
// graph plus the manifest pages it was built from.
type IndexSnapshot struct {
	Root      ProjectRoot       `json:"root"`
	Hash      string            `json:"hash"`
	DocDir    string            `json:"docDir"`
	RootCrate string            `json:"rootCrate"`
	Crates    []CrateDescriptor `json:"crates"`
	Pages     []ManifestPage    `json:"pages"`

	// Documented is set once documentation generation ran for this hash.
	Documented bool `json:"documented"`

	// Manifest is set when at least one crate had a page manifest.
	Manifest bool `json:"manifest"`

	CreatedAt time.Time `json:"createdAt"`
}

// DocIndex is an immutable, fully built documentation index. Both lookup
// directions are derived from the manifest pages when the index is built;
// the physical path is never computed from a logical path.
type DocIndex struct {
	Version IndexVersion
	BuiltAt time.Time

	snapshot   *IndexSnapshot
	entries    []SymbolEntry
	byCrate    map[string][]int
	byLogical  map[string][]int
	byPhysical map[string]int
}

// NewDocIndex derives an index from a snapshot. Pages with a physical path
// seen earlier in the snapshot are ignored, as are re-export records for
// pages that are not part of it.
func NewDocIndex(seq uint64, snap *IndexSnapshot) *DocIndex {
	idx := &DocIndex{
		Version:    IndexVersion{Seq: seq, Hash: snap.Hash},
		BuiltAt:    snap.CreatedAt,
		snapshot:   snap,
		byCrate:    make(map[string][]int),
		byLogical:  make(map[string][]int),
		byPhysical: make(map[string]int),
	}

	groups := make(map[string][]int)
	var reexports []ManifestPage
	for _, page := range snap.Pages {
		if page.PhysicalPath == "" || page.LogicalPath == "" {
			continue
		}
		if page.Reexport {
			reexports = append(reexports, page)
			continue
		}
		if _, ok := idx.byPhysical[page.PhysicalPath]; ok {
			continue
		}
		i := len(idx.entries)
		idx.entries = append(idx.entries, SymbolEntry{
			Crate:        page.Crate,
			LogicalPath:  page.LogicalPath,
			Kind:         page.Kind,
			PhysicalPath: page.PhysicalPath,
		})
		idx.byPhysical[page.PhysicalPath] = i
		idx.byCrate[page.Crate] = append(idx.byCrate[page.Crate], i)
		idx.byLogical[page.LogicalPath] = append(idx.byLogical[page.LogicalPath], i)
		if page.SourceAnchor != "" {
			groups[page.SourceAnchor] = append(groups[page.SourceAnchor], i)
		}
	}

	// Every page of a re-exported item is reachable from every logical
	// path the item is documented under.
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		for _, i := range group {
			for _, j := range group {
				if i == j {
					continue
				}
				idx.addAlias(i, idx.entries[j].LogicalPath)
			}
		}
	}

	for _, page := range reexports {
		if i, ok := idx.byPhysical[page.PhysicalPath]; ok {
			idx.addAlias(i, page.LogicalPath)
		}
	}

	return idx
}

func (idx *DocIndex) addAlias(i int, alias string) {
	e := &idx.entries[i]
	if alias == e.LogicalPath || contains(e.Aliases, alias) {
		return
	}
	e.Aliases = append(e.Aliases, alias)
	idx.byLogical[alias] = appendUnique(idx.byLogical[alias], i)
}

// Snapshot returns the snapshot the index was built from.
func (idx *DocIndex) Snapshot() *IndexSnapshot {
	return idx.snapshot
}

// Root returns the project the index belongs to.
func (idx *DocIndex) Root() ProjectRoot {
	return idx.snapshot.Root
}

// Hash returns the manifest hash the index was built for.
func (idx *DocIndex) Hash() string {
	return idx.snapshot.Hash
}

// DocDir returns the absolute directory holding the generated documentation.
func (idx *DocIndex) DocDir() string {
	return idx.snapshot.DocDir
}

// Crates returns the crate graph.
func (idx *DocIndex) Crates() []CrateDescriptor {
	return idx.snapshot.Crates
}

// Documented reports whether documentation was generated for this index.
func (idx *DocIndex) Documented() bool {
	return idx.snapshot.Documented
}

// HasManifest reports whether a page manifest was generated. Without one
// only crate overviews are available.
func (idx *DocIndex) HasManifest() bool {
	return idx.snapshot.Manifest
}

// Len returns the number of indexed pages.
func (idx *DocIndex) Len() int {
	return len(idx.entries)
}

// Crate finds a crate by package name or doc name. An empty version
// matches any version; the first match in graph order wins.
func (idx *DocIndex) Crate(name, version string) (CrateDescriptor, bool) {
	for _, c := range idx.snapshot.Crates {
		if c.Name != name && c.DocName != name && c.DocName != DocNameOf(name) {
			continue
		}
		if version != "" && c.Version != version {
			continue
		}
		return c, true
	}
	return CrateDescriptor{}, false
}

// Entries returns the pages of a crate in manifest order.
func (idx *DocIndex) Entries(crate string) []SymbolEntry {
	ids := idx.byCrate[crate]
	out := make([]SymbolEntry, len(ids))
	for i, id := range ids {
		out[i] = idx.entries[id]
	}
	return out
}

// Lookup returns the entry for a physical path.
func (idx *DocIndex) Lookup(physicalPath string) (SymbolEntry, bool) {
	i, ok := idx.byPhysical[physicalPath]
	if !ok {
		return SymbolEntry{}, false
	}
	return idx.entries[i], true
}

// NormalizeQuery turns a user-written path into the crate-qualified form
// used by the index. A leading "crate" segment and unqualified paths
// resolve against the root crate.
func (idx *DocIndex) NormalizeQuery(query string) string {
	q := strings.TrimSpace(query)
	q = strings.TrimPrefix(q, "::")
	if q == "" {
		return ""
	}

	first, rest, hasRest := strings.Cut(q, "::")
	root := idx.snapshot.RootCrate
	if first == "crate" {
		if root == "" {
			return q
		}
		if !hasRest {
			return root
		}
		return root + "::" + rest
	}
	if c, ok := idx.Crate(first, ""); ok {
		if !hasRest {
			return c.DocName
		}
		return c.DocName + "::" + rest
	}
	if root == "" {
		return q
	}
	return root + "::" + q
}

// FindSymbol resolves a normalized logical path. Exact matches, including
// every page the item is re-exported at, are returned when present;
// otherwise every entry whose logical path or alias starts with the query.
// Results keep manifest order. At most limit matches are returned when limit
// is positive; total counts all matches.
func (idx *DocIndex) FindSymbol(query string, limit int) (matches []SymbolMatch, total int) {
	if query == "" {
		return nil, 0
	}

	if ids, ok := idx.byLogical[query]; ok && len(ids) > 0 {
		for _, i := range ids {
			kind := MatchExact
			if idx.entries[i].LogicalPath != query {
				kind = MatchReexport
			}
			matches = append(matches, SymbolMatch{SymbolEntry: idx.entries[i], Match: kind})
		}
		return truncate(matches, limit), len(matches)
	}

	for _, e := range idx.entries {
		if !hasPathPrefix(e, query) {
			continue
		}
		matches = append(matches, SymbolMatch{SymbolEntry: e, Match: MatchPrefix})
	}
	return truncate(matches, limit), len(matches)
}

func hasPathPrefix(e SymbolEntry, prefix string) bool {
	if strings.HasPrefix(e.LogicalPath, prefix) {
		return true
	}
	for _, a := range e.Aliases {
		if strings.HasPrefix(a, prefix) {
			return true
		}
	}
	return false
}

func truncate(matches []SymbolMatch, limit int) []SymbolMatch {
	if limit > 0 && len(matches) > limit {
		return matches[:limit]
	}
	return matches
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func appendUnique(ids []int, id int) []int {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}
