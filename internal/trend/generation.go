package trend

// generationSize is the capacity of one averaging ring and
// generationBase the number of oldest points folded into a single
// average when the ring fills.
const (
	generationSize = 200
	generationBase = 10
)

// generation is one level of a cascading averaging pyramid. It buffers
// up to generationSize points; when full it folds its generationBase
// oldest points into their mean and reports that mean upward.
type generation struct {
	xs   [generationSize]float64
	ys   [generationSize]float64
	fill int
}

// add appends a point. When the ring overflows it reduces and returns
// the averaged point to feed into the next coarser generation;
// otherwise overflow is false and the returned point is meaningless.
func (g *generation) add(x, y float64) (avgX, avgY float64, overflow bool) {
	g.xs[g.fill] = x
	g.ys[g.fill] = y
	g.fill++
	if g.fill < generationSize {
		return 0, 0, false
	}
	return g.reduce()
}

// reduce folds the generationBase oldest points into their mean, shifts
// the remainder down and returns the mean.
func (g *generation) reduce() (avgX, avgY float64, overflow bool) {
	var sx, sy float64
	for i := 0; i < generationBase; i++ {
		sx += g.xs[i]
		sy += g.ys[i]
	}
	copy(g.xs[:], g.xs[generationBase:g.fill])
	copy(g.ys[:], g.ys[generationBase:g.fill])
	g.fill -= generationBase
	return sx / generationBase, sy / generationBase, true
}

// dropThrough removes every buffered point with timestamp <= x. Called
// after a history reply lands so averaged points do not duplicate the
// freshly fetched interval.
func (g *generation) dropThrough(x float64) {
	pos := 0
	for pos < g.fill && g.xs[pos] <= x {
		pos++
	}
	if pos == 0 {
		return
	}
	copy(g.xs[:], g.xs[pos:g.fill])
	copy(g.ys[:], g.ys[pos:g.fill])
	g.fill -= pos
}
