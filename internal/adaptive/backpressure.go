package adaptive

// BackpressureProvider reports how overloaded the task-side resources are
// as a scalar in [0, 1]. Implementations must be non-blocking.
type BackpressureProvider interface {
	// Level returns the current pressure in [0, 1].
	Level() float64

	// Description identifies the signal source for logs and reports.
	Description() string
}

// QueueDepthProvider derives backpressure from the engine's queue-depth
// gauge: min(1, depth / maxDepth).
//
// Thread Safety: Safe for concurrent use.
type QueueDepthProvider struct {
	depthFn  func() int64
	maxDepth int64
}

// NewQueueDepthProvider creates a provider over the given gauge source.
// maxDepth values below 1 are clamped to 1.
func NewQueueDepthProvider(depthFn func() int64, maxDepth int64) *QueueDepthProvider {
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &QueueDepthProvider{depthFn: depthFn, maxDepth: maxDepth}
}

// Level returns min(1, currentDepth / maxDepth).
func (p *QueueDepthProvider) Level() float64 {
	depth := p.depthFn()
	if depth <= 0 {
		return 0
	}
	level := float64(depth) / float64(p.maxDepth)
	if level > 1 {
		return 1
	}
	return level
}

// Description identifies the signal source.
func (p *QueueDepthProvider) Description() string { return "queue-depth" }

// CompositeProvider aggregates several providers by taking the maximum
// level, so the most pressured signal wins.
//
// Thread Safety: Safe for concurrent use (read-only after creation).
type CompositeProvider struct {
	providers []BackpressureProvider
}

// NewCompositeProvider combines the given providers. Nil entries are
// ignored.
func NewCompositeProvider(providers ...BackpressureProvider) *CompositeProvider {
	kept := make([]BackpressureProvider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &CompositeProvider{providers: kept}
}

// Level returns the maximum level across sub-providers, 0 when empty.
func (c *CompositeProvider) Level() float64 {
	var level float64
	for _, p := range c.providers {
		if l := p.Level(); l > level {
			level = l
		}
	}
	return level
}

// Description lists the sub-provider descriptions.
func (c *CompositeProvider) Description() string {
	switch len(c.providers) {
	case 0:
		return "composite(empty)"
	case 1:
		return c.providers[0].Description()
	}
	desc := "composite("
	for i, p := range c.providers {
		if i > 0 {
			desc += ","
		}
		desc += p.Description()
	}
	return desc + ")"
}

// Compile-time interface checks
var (
	_ BackpressureProvider = (*QueueDepthProvider)(nil)
	_ BackpressureProvider = (*CompositeProvider)(nil)
)
