package trend

import (
	"math"
	"testing"

	"github.com/nerrad567/datalog-core/internal/karabo"
)

type recordingRenderer struct {
	updates [][2][]float64
}

func (r *recordingRenderer) Update(xs, ys []float64) {
	cx := make([]float64, len(xs))
	cy := make([]float64, len(ys))
	copy(cx, xs)
	copy(cy, ys)
	r.updates = append(r.updates, [2][]float64{cx, cy})
}

func (r *recordingRenderer) last() ([]float64, []float64) {
	if len(r.updates) == 0 {
		return nil, nil
	}
	u := r.updates[len(r.updates)-1]
	return u[0], u[1]
}

type recordingFetcher struct {
	reqs []HistoryRequest
}

func (f *recordingFetcher) FetchHistory(req HistoryRequest) {
	f.reqs = append(f.reqs, req)
}

func mkTS(t float64) karabo.Timestamp {
	sec := math.Floor(t)
	return karabo.Timestamp{Sec: uint64(sec), Frac: uint64((t - sec) * 1e18)}
}

func histSamples(start, step float64, n int) []karabo.Sample {
	samples := make([]karabo.Sample, n)
	for i := range samples {
		t := start + float64(i)*step
		samples[i] = karabo.Sample{Value: t, Time: mkTS(t)}
	}
	return samples
}

func assertStrictlyIncreasing(t *testing.T, xs []float64) {
	t.Helper()
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			t.Fatalf("timestamps not strictly increasing at %d: %v then %v", i, xs[i-1], xs[i])
		}
	}
}

func TestGenerationReduce(t *testing.T) {
	g := &generation{}
	var avgX, avgY float64
	var overflow bool
	for i := 0; i < generationSize; i++ {
		avgX, avgY, overflow = g.add(float64(i), float64(i)*2)
		if i < generationSize-1 && overflow {
			t.Fatalf("overflow before ring was full at %d", i)
		}
	}
	if !overflow {
		t.Fatal("full ring did not overflow")
	}
	if avgX != 4.5 {
		t.Errorf("avgX = %v, want 4.5", avgX)
	}
	if avgY != 9 {
		t.Errorf("avgY = %v, want 9", avgY)
	}
	if g.fill != generationSize-generationBase {
		t.Errorf("fill = %d, want %d", g.fill, generationSize-generationBase)
	}
	if g.xs[0] != float64(generationBase) {
		t.Errorf("xs[0] = %v, want %v", g.xs[0], float64(generationBase))
	}
}

func TestLiveRingStaysBoundedAndOrdered(t *testing.T) {
	c := NewCurve(CurveNumeric)
	r := &recordingRenderer{}
	c.SetRenderer(r)

	for i := 0; i < 5000; i++ {
		c.AddPoint(float64(i), mkTS(float64(1000 + i)))
	}

	if c.fill > len(c.x) {
		t.Fatalf("fill %d exceeds capacity %d", c.fill, len(c.x))
	}
	xs, _ := r.last()
	assertStrictlyIncreasing(t, xs)
	if xs[len(xs)-1] != 5999 {
		t.Errorf("latest timestamp = %v, want 5999", xs[len(xs)-1])
	}
}

func TestLiveMergeWithHistory(t *testing.T) {
	c := NewCurve(CurveNumeric)
	r := &recordingRenderer{}
	f := &recordingFetcher{}
	c.SetRenderer(r)
	c.SetFetcher(f)

	for i := 0; i < 2000; i++ {
		c.AddPoint(float64(i), mkTS(float64(1000 + i)))
	}

	c.ChangeInterval(0, 900, false)
	if len(f.reqs) != 1 {
		t.Fatalf("history requests = %d, want 1", len(f.reqs))
	}
	req := f.reqs[0]
	if req.T0 != 0 || req.T1 != 900 {
		t.Errorf("request window = [%v, %v], want [0, 900]", req.T0, req.T1)
	}
	if req.MaxItems != maxHistory {
		t.Errorf("request cap = %d, want %d", req.MaxItems, maxHistory)
	}

	c.ApplyHistory(histSamples(100, 1, 400), req.Generation)

	if c.HistSize() != 400 {
		t.Fatalf("HistSize() = %d, want 400", c.HistSize())
	}
	xs, ys := r.last()
	assertStrictlyIncreasing(t, xs)
	for i := 0; i < 400; i++ {
		if xs[i] != float64(100 + i) {
			t.Fatalf("xs[%d] = %v, want %v", i, xs[i], float64(100 + i))
		}
		if ys[i] != float64(100 + i) {
			t.Fatalf("ys[%d] = %v, want %v", i, ys[i], float64(100 + i))
		}
	}
	if xs[400] < 1000 {
		t.Errorf("first live point = %v, want >= 1000", xs[400])
	}
}

func TestHistoryTrimsGenerations(t *testing.T) {
	c := NewCurve(CurveNumeric)
	r := &recordingRenderer{}
	f := &recordingFetcher{}
	c.SetRenderer(r)
	c.SetFetcher(f)

	for i := 0; i < 300; i++ {
		c.AddPoint(float64(i), mkTS(float64(i)))
	}

	c.ChangeInterval(0, 400, false)
	// Denser than the 300 local points, ending at t=199.5 inside the
	// live range, so the overlap must be shed from the generations.
	c.ApplyHistory(histSamples(0, 0.5, 400), f.reqs[0].Generation)

	if c.HistSize() != 400 {
		t.Fatalf("HistSize() = %d, want 400", c.HistSize())
	}
	xs, _ := r.last()
	assertStrictlyIncreasing(t, xs)
	if len(xs) != 500 {
		t.Fatalf("points after merge = %d, want 500", len(xs))
	}
	if xs[400] != 200 {
		t.Errorf("first surviving live point = %v, want 200", xs[400])
	}
}

func TestSparserHistoryDiscarded(t *testing.T) {
	c := NewCurve(CurveNumeric)
	f := &recordingFetcher{}
	c.SetFetcher(f)

	for i := 0; i < 500; i++ {
		c.AddPoint(float64(i), mkTS(float64(i)))
	}
	c.ChangeInterval(0, 500, false)

	// 10 points over a shorter span than the 500 local ones.
	c.ApplyHistory(histSamples(0, 30, 10), f.reqs[0].Generation)

	if c.HistSize() != 0 {
		t.Errorf("HistSize() = %d, want 0 after discard", c.HistSize())
	}
}

func TestStaleHistoryReplyDropped(t *testing.T) {
	c := NewCurve(CurveNumeric)
	f := &recordingFetcher{}
	c.SetFetcher(f)

	c.ChangeInterval(0, 100, true)
	c.ChangeInterval(0, 200, true)
	if len(f.reqs) != 2 {
		t.Fatalf("history requests = %d, want 2", len(f.reqs))
	}

	c.ApplyHistory(histSamples(0, 1, 50), f.reqs[0].Generation)
	if c.HistSize() != 0 {
		t.Fatalf("stale reply was applied, HistSize() = %d", c.HistSize())
	}

	c.ApplyHistory(histSamples(0, 1, 50), f.reqs[1].Generation)
	if c.HistSize() != 50 {
		t.Errorf("HistSize() = %d, want 50", c.HistSize())
	}
}

func TestEmptyHistoryReplyIgnored(t *testing.T) {
	c := NewCurve(CurveNumeric)
	f := &recordingFetcher{}
	c.SetFetcher(f)

	c.ChangeInterval(0, 100, false)
	c.ApplyHistory(nil, f.reqs[0].Generation)
	if c.HistSize() != 0 {
		t.Errorf("HistSize() = %d, want 0", c.HistSize())
	}
}

func TestEmptyWindowRendersEmptyWithoutFetch(t *testing.T) {
	c := NewCurve(CurveNumeric)
	r := &recordingRenderer{}
	f := &recordingFetcher{}
	c.SetRenderer(r)
	c.SetFetcher(f)

	c.AddPoint(1.0, mkTS(10))
	c.ChangeInterval(5, 5, false)

	if len(f.reqs) != 0 {
		t.Errorf("history requests = %d, want 0", len(f.reqs))
	}
	xs, ys := r.last()
	if len(xs) != 0 || len(ys) != 0 {
		t.Errorf("update not empty: %d/%d points", len(xs), len(ys))
	}
}

func TestInvisibleCurveNeverFetches(t *testing.T) {
	c := NewCurve(CurveNumeric)
	f := &recordingFetcher{}
	c.SetFetcher(f)

	c.SetVisible(false)
	c.ChangeInterval(0, 100, true)
	if len(f.reqs) != 0 {
		t.Errorf("hidden curve issued %d history requests", len(f.reqs))
	}
}

func TestBecomingVisibleRefetches(t *testing.T) {
	c := NewCurve(CurveNumeric)
	f := &recordingFetcher{}
	c.SetFetcher(f)

	c.SetVisible(false)
	c.ChangeInterval(0, 100, false)
	c.SetVisible(true)
	if len(f.reqs) != 1 {
		t.Errorf("history requests = %d, want 1 after becoming visible", len(f.reqs))
	}
}

func TestVisibleToggleSkipsFetchWhenHistoryCovers(t *testing.T) {
	c := NewCurve(CurveNumeric)
	f := &recordingFetcher{}
	c.SetFetcher(f)

	c.ChangeInterval(0, 400, false)
	if len(f.reqs) != 1 {
		t.Fatalf("history requests = %d, want 1", len(f.reqs))
	}
	// The slab extends past the window; with no live points the toggle
	// must not fetch again.
	c.ApplyHistory(histSamples(0, 1, 500), f.reqs[0].Generation)
	c.SetVisible(false)
	c.SetVisible(true)
	if len(f.reqs) != 1 {
		t.Errorf("history requests = %d, want 1 (slab already covers the window)", len(f.reqs))
	}
}

func TestVisibleToggleRefetchesWhenHistoryStopsShort(t *testing.T) {
	c := NewCurve(CurveNumeric)
	f := &recordingFetcher{}
	c.SetFetcher(f)

	c.ChangeInterval(0, 400, false)
	if len(f.reqs) != 1 {
		t.Fatalf("history requests = %d, want 1", len(f.reqs))
	}
	c.ApplyHistory(histSamples(0, 1, 300), f.reqs[0].Generation)
	c.SetVisible(false)
	c.SetVisible(true)
	if len(f.reqs) != 2 {
		t.Errorf("history requests = %d, want 2 (slab ends before the window)", len(f.reqs))
	}
}

func TestAggregateDefaults(t *testing.T) {
	c := NewCurve(CurveNumeric)
	if got := c.MaxX(); got != defaultMax {
		t.Errorf("MaxX() = %v, want %v", got, defaultMax)
	}
	if got := c.MaxY(); got != defaultMax {
		t.Errorf("MaxY() = %v, want %v", got, defaultMax)
	}
	if got := c.MinY(); got != defaultMin {
		t.Errorf("MinY() = %v, want %v", got, defaultMin)
	}
}

func TestAggregatesSkipGaps(t *testing.T) {
	c := NewCurve(CurveNumeric)
	c.AddPoint(1.0, mkTS(10))
	c.AddPoint(2.0, mkTS(11))
	c.AddPoint(4.0, mkTS(12))
	// Over the plot limit, stored as a gap.
	c.AddPoint(1e39, mkTS(13))

	if got := c.MinY(); got != 1 {
		t.Errorf("MinY() = %v, want 1", got)
	}
	if got := c.MaxY(); got != 4 {
		t.Errorf("MaxY() = %v, want 4", got)
	}
	if got := c.MaxX(); got != 13 {
		t.Errorf("MaxX() = %v, want 13", got)
	}
	if got := c.MeanY(2); got != 4 {
		t.Errorf("MeanY(2) = %v, want 4", got)
	}
	if got := c.MeanY(100); got != 7.0/3.0 {
		t.Errorf("MeanY(100) = %v, want %v", got, 7.0/3.0)
	}
}

func TestMeanYNegativeCount(t *testing.T) {
	c := NewCurve(CurveNumeric)
	c.AddPoint(1.0, mkTS(10))
	c.AddPoint(2.0, mkTS(11))

	if got := c.MeanY(-5); got != 0 {
		t.Errorf("MeanY(-5) = %v, want 0", got)
	}
}

func TestStateCurveMapsEnumValues(t *testing.T) {
	c := NewCurve(CurveState)
	c.AddPoint("ON", mkTS(1))
	c.AddPoint("nonsense", mkTS(2))

	_, ys := c.live()
	if ys[0] != float64(stateIntegerMap["ON"]) {
		t.Errorf("ys[0] = %v, want %v", ys[0], float64(stateIntegerMap["ON"]))
	}
	if !math.IsNaN(ys[1]) {
		t.Errorf("ys[1] = %v, want NaN for unknown state", ys[1])
	}
}

func TestAlarmCurveMapsEnumValues(t *testing.T) {
	c := NewCurve(CurveAlarm)
	c.AddPoint("warnHigh", mkTS(1))
	c.AddPoint(42, mkTS(2))

	_, ys := c.live()
	if ys[0] != float64(alarmIntegerMap["warnHigh"]) {
		t.Errorf("ys[0] = %v, want %v", ys[0], float64(alarmIntegerMap["warnHigh"]))
	}
	if !math.IsNaN(ys[1]) {
		t.Errorf("ys[1] = %v, want NaN for non-string alarm value", ys[1])
	}
}

func TestMissingHistorySamplesBecomeGaps(t *testing.T) {
	c := NewCurve(CurveNumeric)
	f := &recordingFetcher{}
	c.SetFetcher(f)
	c.ChangeInterval(0, 10, false)

	samples := []karabo.Sample{
		{Value: 1.0, Time: mkTS(1)},
		{Missing: true, Time: mkTS(2)},
		{Value: 3.0, Time: mkTS(3)},
	}
	c.ApplyHistory(samples, f.reqs[0].Generation)

	if c.HistSize() != 3 {
		t.Fatalf("HistSize() = %d, want 3", c.HistSize())
	}
	if !math.IsNaN(c.y[1]) {
		t.Errorf("y[1] = %v, want NaN for missing bucket", c.y[1])
	}
}
