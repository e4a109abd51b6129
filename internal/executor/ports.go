package executor

// DefaultBasePort is the dev-server port of the first template.
const DefaultBasePort = 3000

// PortAllocator hands out one dev-server port per template index.
// Distinct indexes always map to distinct ports, so concurrently running
// dev servers never collide.
type PortAllocator struct {
	Base int
}

// Port returns Base + n.
func (a PortAllocator) Port(n int) int {
	base := a.Base
	if base == 0 {
		base = DefaultBasePort
	}
	return base + n
}
