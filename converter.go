package cargomcp

// Converter renders rustdoc HTML fragments as Markdown. Implementations
// receive the content of a single page with navigation already removed.
type Converter interface {
	Convert(html string) (string, error)
}
