package trend

import (
	"math"
	"sort"

	"github.com/nerrad567/datalog-core/internal/karabo"
)

// Curve tuning. The live ring keeps spare raw samples beyond the
// generation pyramid; history replies are capped at maxHistory points.
// A window holding fewer than minHistory local points over a history
// slab larger than sparseSize triggers a re-fetch at better resolution.
const (
	generationCount = 4
	spareSamples    = 100
	maxHistory      = 500
	sparseSize      = 400
	minHistory      = 100
)

// Aggregate sentinels reported before any live sample arrives, so an
// empty curve still yields a non-degenerate autoscale range.
const (
	defaultMax = 0.5
	defaultMin = -0.5
)

// Renderer receives the visible slice after every change to the curve.
// An empty update clears the plot.
type Renderer interface {
	Update(xs, ys []float64)
}

// HistoryRequest asks the backing log reader for samples in [T0, T1].
// Generation tags the request; a reply carrying a stale generation is
// dropped, which cancels in-flight fetches superseded by a newer window.
type HistoryRequest struct {
	T0, T1     float64
	MaxItems   int
	Generation uint64
}

// Fetcher issues history requests. Implementations deliver the reply
// asynchronously via Curve.ApplyHistory.
type Fetcher interface {
	FetchHistory(req HistoryRequest)
}

// Curve accumulates live samples for one plotted property and merges
// fetched history beneath them. The live side is a raw ring backed by a
// pyramid of averaging generations, so arbitrarily long runs keep a
// bounded memory footprint while old data stays visible at reduced
// resolution.
//
// Curve is not safe for concurrent use; callers serialise access.
type Curve struct {
	ctype    CurveType
	renderer Renderer
	fetcher  Fetcher

	// gens[0] receives raw points; overflow averages propagate to
	// ever coarser levels above it.
	gens [generationCount]*generation

	// x[:histSize] is the fetched history slab, x[histSize:fill] the
	// live section rebuilt from the generations plus recent raw points.
	x, y     []float64
	fill     int
	histSize int

	t0, t1   float64
	visible  bool
	fetchGen uint64
}

// NewCurve returns an empty curve of the given type. A fresh curve is
// visible and has no window; call ChangeInterval to open one.
func NewCurve(ctype CurveType) *Curve {
	c := &Curve{ctype: ctype, visible: true}
	for i := range c.gens {
		c.gens[i] = &generation{}
	}
	size := generationCount*generationSize + spareSamples
	c.x = make([]float64, size)
	c.y = make([]float64, size)
	return c
}

// SetRenderer installs the plot sink. Passing nil detaches it.
func (c *Curve) SetRenderer(r Renderer) { c.renderer = r }

// SetFetcher installs the history source. Without one the curve plots
// live data only.
func (c *Curve) SetFetcher(f Fetcher) { c.fetcher = f }

// AddPoint appends one live sample. The value is sanitised for the
// curve type, cascaded through the averaging generations and appended
// to the raw ring; a full ring is compacted from the generations.
func (c *Curve) AddPoint(value any, ts karabo.Timestamp) {
	t := tsSeconds(ts)
	v := sanitize(c.ctype, value)

	px, py := t, v
	for i := 0; i < generationCount; i++ {
		ax, ay, overflow := c.gens[i].add(px, py)
		if !overflow {
			break
		}
		// The coarsest generation's average is discarded when the
		// loop runs off the top.
		px, py = ax, ay
	}

	c.x[c.fill] = t
	c.y[c.fill] = v
	c.fill++
	if c.fill == len(c.x) {
		c.rebuild()
	}
	c.render()
}

// ChangeInterval moves the visible window to [t0, t1] and decides
// whether the local data warrants a history fetch. force always
// fetches; an empty window never does.
func (c *Curve) ChangeInterval(t0, t1 float64, force bool) {
	c.t0, c.t1 = t0, t1
	if t1 <= t0 {
		if c.renderer != nil {
			c.renderer.Update(nil, nil)
		}
		return
	}
	if c.visible && (force || c.needsHistory(t0, t1)) {
		c.requestHistory()
	}
	c.render()
}

// needsHistory reports whether [t0, t1] is poorly served by local data:
// nothing fetched yet, too few points over a large slab, or the slab
// not covering 90% of the window on either side.
func (c *Curve) needsHistory(t0, t1 float64) bool {
	if c.histSize == 0 {
		return true
	}
	p0 := lowerBound(c.x[:c.fill], t0)
	p1 := lowerBound(c.x[:c.fill], t1)
	if p1-p0 < minHistory && c.histSize > sparseSize {
		return true
	}
	if p0 >= c.fill {
		return true
	}
	// Local data must cover at least the first decile of the window.
	if c.x[p0] > 0.9*t0 + 0.1*t1 {
		return true
	}
	if p1 <= c.histSize && (p1 == 0 || c.x[p1-1] < 0.1*t0 + 0.9*t1) {
		return true
	}
	return false
}

// SetVisible toggles whether the curve is on screen. Hidden curves
// never fetch; becoming visible re-fetches if the history slab stops
// short of the window.
func (c *Curve) SetVisible(visible bool) {
	c.visible = visible
	if !visible || c.t1 <= c.t0 {
		return
	}
	// The covered edge is the first live point, or the end of the
	// history slab when nothing live has arrived yet.
	var coveredEdge float64
	switch {
	case c.histSize < c.fill:
		coveredEdge = c.x[c.histSize]
	case c.histSize > 0:
		coveredEdge = c.x[c.histSize-1]
	}
	if c.t1 >= coveredEdge {
		c.requestHistory()
	}
}

// ApplyHistory merges a history reply tagged with the generation it
// answers. Stale, empty, or sparser-than-local replies are dropped;
// otherwise the reply becomes the new history slab, the averaging
// generations shed the interval it covers and the live ring is rebuilt
// behind it.
func (c *Curve) ApplyHistory(samples []karabo.Sample, generation uint64) {
	if generation != c.fetchGen {
		return
	}
	if len(samples) == 0 {
		return
	}

	nx := make([]float64, len(samples))
	ny := make([]float64, len(samples))
	for i, s := range samples {
		nx[i] = tsSeconds(s.Time)
		if s.Missing {
			ny[i] = math.NaN()
		} else {
			ny[i] = sanitize(c.ctype, s.Value)
		}
	}

	if c.sparserThanLocal(nx) {
		return
	}

	end := nx[len(nx)-1]
	for _, g := range c.gens {
		g.dropThrough(end)
	}

	size := len(nx) + generationCount*generationSize + spareSamples
	newX := make([]float64, size)
	newY := make([]float64, size)
	copy(newX, nx)
	copy(newY, ny)
	c.x, c.y = newX, newY
	c.histSize = len(nx)
	c.rebuild()
	c.render()
}

// sparserThanLocal compares the reply's density over the window against
// what is already held. A reply with fewer points is still accepted if
// it spans at least 10% more of the window than the local data does.
func (c *Curve) sparserThanLocal(nx []float64) bool {
	if c.fill == 0 || c.t1 <= c.t0 {
		return false
	}
	p0 := lowerBound(c.x[:c.fill], c.t0)
	p1 := lowerBound(c.x[:c.fill], c.t1)
	np0 := lowerBound(nx, c.t0)
	np1 := lowerBound(nx, c.t1)
	if p1 <= p0 || np1 <= np0 {
		return false
	}
	span := (c.x[p1-1] - c.x[p0]) / (c.t1 - c.t0)
	nspan := (nx[np1-1] - nx[np0]) / (c.t1 - c.t0)
	return np1-np0 < p1-p0 && !(nspan > 0.9*span)
}

// rebuild recreates the live section of the ring from the generation
// pyramid, coarsest first so timestamps stay ordered.
func (c *Curve) rebuild() {
	pos := c.histSize
	for i := generationCount - 1; i >= 0; i-- {
		g := c.gens[i]
		copy(c.x[pos:], g.xs[:g.fill])
		copy(c.y[pos:], g.ys[:g.fill])
		pos += g.fill
	}
	c.fill = pos
}

func (c *Curve) requestHistory() {
	c.fetchGen++
	if c.fetcher == nil {
		return
	}
	c.fetcher.FetchHistory(HistoryRequest{
		T0:         c.t0,
		T1:         c.t1,
		MaxItems:   maxHistory,
		Generation: c.fetchGen,
	})
}

// render hands the filled portion of the buffers to the renderer. The
// plot applies the visible window itself; the curve only guarantees the
// data is ordered.
func (c *Curve) render() {
	if c.renderer == nil {
		return
	}
	c.renderer.Update(c.x[:c.fill:c.fill], c.y[:c.fill:c.fill])
}

// HistSize returns the number of fetched history samples currently held.
func (c *Curve) HistSize() int { return c.histSize }

// liveY returns the live-section values, skipping history.
func (c *Curve) live() (xs, ys []float64) {
	return c.x[c.histSize:c.fill], c.y[c.histSize:c.fill]
}

// MeanY averages the most recent lastN live values, skipping NaN gaps.
// lastN is clamped to what is available; an empty curve reports 0.
func (c *Curve) MeanY(lastN int) float64 {
	_, ys := c.live()
	if lastN > len(ys) {
		lastN = len(ys)
	}
	if lastN < 0 {
		lastN = 0
	}
	var sum float64
	var n int
	for _, v := range ys[len(ys)-lastN:] {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// MinY returns the smallest live value, or defaultMin before any
// sample arrives.
func (c *Curve) MinY() float64 {
	_, ys := c.live()
	min := math.Inf(1)
	found := false
	for _, v := range ys {
		if math.IsNaN(v) {
			continue
		}
		found = true
		if v < min {
			min = v
		}
	}
	if !found {
		return defaultMin
	}
	return min
}

// MaxY returns the largest live value, or defaultMax before any
// sample arrives.
func (c *Curve) MaxY() float64 {
	_, ys := c.live()
	max := math.Inf(-1)
	found := false
	for _, v := range ys {
		if math.IsNaN(v) {
			continue
		}
		found = true
		if v > max {
			max = v
		}
	}
	if !found {
		return defaultMax
	}
	return max
}

// MaxX returns the newest live timestamp, or defaultMax before any
// sample arrives.
func (c *Curve) MaxX() float64 {
	xs, _ := c.live()
	if len(xs) == 0 {
		return defaultMax
	}
	return xs[len(xs)-1]
}

// tsSeconds flattens a timestamp to fractional seconds since the epoch.
func tsSeconds(ts karabo.Timestamp) float64 {
	return float64(ts.Sec) + float64(ts.Frac)/1e18
}

// lowerBound returns the first index whose value is >= t.
func lowerBound(xs []float64, t float64) int {
	return sort.SearchFloat64s(xs, t)
}
