// Package goquery reads rustdoc-generated HTML using CSS selectors.
package goquery

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/cargomcp"
)

// Ensure Reader implements cargomcp.DocReader at compile time.
var _ cargomcp.DocReader = (*Reader)(nil)

const (
	indexPage    = "index.html"
	manifestPage = "all.html"
)

// Reader reads documentation pages from a rustdoc output directory.
type Reader struct{}

// NewReader creates a new Reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadCrate enumerates the pages of a crate: its root page, every item
// listed in all.html, and every module reachable from the root page.
// Re-export tables on module pages are returned as re-export records.
// A crate without a root page has no documentation and yields no pages.
func (r *Reader) ReadCrate(ctx context.Context, docDir string, crate cargomcp.CrateDescriptor) (*cargomcp.CrateDocs, error) {
	name := crate.DocName
	if name == "" {
		name = cargomcp.DocNameOf(crate.Name)
	}
	rootPath := path.Join(name, indexPage)

	root, err := r.load(docDir, rootPath)
	if cargomcp.ErrorCode(err) == cargomcp.ENOTFOUND {
		return &cargomcp.CrateDocs{}, nil
	} else if err != nil {
		return nil, err
	}

	docs := &cargomcp.CrateDocs{
		Pages: []cargomcp.ManifestPage{{
			Crate:        name,
			LogicalPath:  name,
			Kind:         cargomcp.SymbolCrate,
			PhysicalPath: rootPath,
		}},
	}

	all, err := r.load(docDir, path.Join(name, manifestPage))
	switch cargomcp.ErrorCode(err) {
	case "":
		docs.Manifest = true
		docs.Pages = append(docs.Pages, manifestItems(all, name)...)
	case cargomcp.ENOTFOUND:
	default:
		return nil, err
	}

	// Walk the module tree breadth first. Modules are not listed in all.html.
	seen := map[string]bool{rootPath: true}
	queue := []string{rootPath}
	pages := map[string]*goquery.Document{rootPath: root}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		doc := pages[current]
		delete(pages, current)
		if doc == nil {
			doc, err = r.load(docDir, current)
			if cargomcp.ErrorCode(err) == cargomcp.ENOTFOUND {
				continue
			} else if err != nil {
				return nil, err
			}
			docs.Pages = append(docs.Pages, cargomcp.ManifestPage{
				Crate:        name,
				LogicalPath:  moduleLogicalPath(current),
				Kind:         cargomcp.SymbolModule,
				PhysicalPath: current,
			})
		}

		docs.Pages = append(docs.Pages, reexports(doc, name, current)...)

		doc.Find("a.mod[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			target, ok := resolve(current, href)
			if !ok || seen[target] || path.Base(target) != indexPage || !strings.HasPrefix(target, name+"/") {
				return
			}
			seen[target] = true
			queue = append(queue, target)
		})
	}

	return docs, nil
}

// SourceAnchor returns the source link of a page, resolved against the
// documentation root and keeping its line fragment.
func (r *Reader) SourceAnchor(ctx context.Context, docDir, physicalPath string) (string, error) {
	doc, err := r.load(docDir, physicalPath)
	if err != nil {
		return "", err
	}
	href, ok := doc.Find("a.src[href], a.srclink[href]").First().Attr("href")
	if !ok {
		return "", nil
	}
	target, frag, _ := strings.Cut(href, "#")
	resolved, ok := resolve(physicalPath, target)
	if !ok {
		return "", nil
	}
	if frag != "" {
		resolved += "#" + frag
	}
	return resolved, nil
}

// ReadOverview returns the HTML of the crate-level docblock, or "" when the
// crate has no crate-level documentation.
func (r *Reader) ReadOverview(ctx context.Context, docDir, physicalPath string) (string, error) {
	doc, err := r.load(docDir, physicalPath)
	if err != nil {
		return "", err
	}
	block := doc.Find("#main-content .docblock").First()
	if block.Length() == 0 {
		return "", nil
	}
	html, err := block.Html()
	if err != nil {
		return "", cargomcp.Errorf(cargomcp.EINTERNAL, "failed to render docblock of %s: %v", physicalPath, err)
	}
	return html, nil
}

// ReadContent returns the HTML of the main content section of a page.
func (r *Reader) ReadContent(ctx context.Context, docDir, physicalPath string) (string, error) {
	doc, err := r.load(docDir, physicalPath)
	if err != nil {
		return "", err
	}
	main := doc.Find("section#main-content").First()
	if main.Length() == 0 {
		return "", cargomcp.Errorf(cargomcp.ENOTFOUND, "page %s has no main content", physicalPath)
	}
	html, err := main.Html()
	if err != nil {
		return "", cargomcp.Errorf(cargomcp.EINTERNAL, "failed to render %s: %v", physicalPath, err)
	}
	return html, nil
}

// load parses the page at a physical path below docDir.
func (r *Reader) load(docDir, physicalPath string) (*goquery.Document, error) {
	clean := path.Clean(physicalPath)
	if physicalPath == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return nil, cargomcp.Errorf(cargomcp.EINVALID, "invalid documentation path %q", physicalPath)
	}

	f, err := os.Open(filepath.Join(docDir, filepath.FromSlash(clean)))
	if os.IsNotExist(err) {
		return nil, cargomcp.Errorf(cargomcp.ENOTFOUND, "documentation page %s not found", physicalPath)
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, cargomcp.Errorf(cargomcp.EINVALID, "failed to parse %s: %v", physicalPath, err)
	}
	return doc, nil
}

// manifestItems lists the items of all.html. Each link text is the item's
// path relative to the crate.
func manifestItems(doc *goquery.Document, crate string) []cargomcp.ManifestPage {
	var pages []cargomcp.ManifestPage
	base := path.Join(crate, manifestPage)
	doc.Find("ul.all-items li a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		text := strings.TrimSpace(sel.Text())
		target, ok := resolve(base, href)
		if !ok || text == "" || !strings.HasPrefix(target, crate+"/") {
			return
		}
		pages = append(pages, cargomcp.ManifestPage{
			Crate:        crate,
			LogicalPath:  crate + "::" + text,
			Kind:         kindOf(target),
			PhysicalPath: target,
		})
	})
	return pages
}

// reexports reads the re-export table of a module page. Glob re-exports
// and re-exports without a documentation link are skipped.
func reexports(doc *goquery.Document, crate, modulePath string) []cargomcp.ManifestPage {
	table := doc.Find("#reexports").NextAllFiltered(".item-table").First()
	if table.Length() == 0 {
		return nil
	}

	module := moduleLogicalPath(modulePath)
	var pages []cargomcp.ManifestPage
	table.Find("code").Each(func(_ int, code *goquery.Selection) {
		text := strings.TrimSpace(code.Text())
		if strings.Contains(text, "*") {
			return
		}
		href, ok := code.Find("a[href]").Last().Attr("href")
		if !ok {
			return
		}
		target, ok := resolve(modulePath, strings.SplitN(href, "#", 2)[0])
		if !ok || path.Ext(target) != ".html" {
			return
		}
		name := reexportName(text)
		if name == "" {
			return
		}
		pages = append(pages, cargomcp.ManifestPage{
			Crate:        crate,
			LogicalPath:  module + "::" + name,
			Kind:         kindOf(target),
			PhysicalPath: target,
			Reexport:     true,
		})
	})
	return pages
}

// reexportName returns the name a use declaration binds:
// "pub use a::B as C;" binds C, "pub use a::B;" binds B.
func reexportName(decl string) string {
	decl = strings.TrimSuffix(strings.TrimSpace(decl), ";")
	if _, alias, ok := strings.Cut(decl, " as "); ok {
		return strings.TrimSpace(alias)
	}
	fields := strings.Fields(decl)
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	if i := strings.LastIndex(last, "::"); i >= 0 {
		last = last[i+2:]
	}
	if last == "self" || last == "super" || last == "crate" {
		return ""
	}
	return last
}

// resolve joins a relative link against the directory of the page it
// appears on. Links leaving the documentation root are rejected.
func resolve(page, href string) (string, bool) {
	if href == "" || strings.Contains(href, "://") || strings.HasPrefix(href, "/") || strings.HasPrefix(href, "#") {
		return "", false
	}
	href, _, _ = strings.Cut(href, "?")
	target := path.Join(path.Dir(page), href)
	if target == "." || target == ".." || strings.HasPrefix(target, "../") {
		return "", false
	}
	return target, true
}

// moduleLogicalPath derives the logical path of a module page from its
// location: "mycrate/util/index.html" is mycrate::util.
func moduleLogicalPath(physicalPath string) string {
	dir := path.Dir(physicalPath)
	return strings.ReplaceAll(dir, "/", "::")
}

// kindOf derives the item kind from rustdoc's page name prefix.
func kindOf(physicalPath string) cargomcp.SymbolKind {
	base := path.Base(physicalPath)
	if base == indexPage {
		return cargomcp.SymbolModule
	}
	prefix, _, ok := strings.Cut(base, ".")
	if !ok {
		return ""
	}
	return cargomcp.SymbolKind(prefix)
}
