package mock

import (
	"sync"

	"github.com/fwojciec/cargomcp"
)

var _ cargomcp.Converter = (*Converter)(nil)

// Converter records every fragment it renders.
type Converter struct {
	ConvertFn func(html string) (string, error)

	mu     sync.Mutex
	inputs []string
}

func (c *Converter) Convert(html string) (string, error) {
	c.mu.Lock()
	c.inputs = append(c.inputs, html)
	c.mu.Unlock()
	return c.ConvertFn(html)
}

// Inputs returns the fragments passed to Convert so far.
func (c *Converter) Inputs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.inputs...)
}
