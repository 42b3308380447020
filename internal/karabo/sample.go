package karabo

// Sample is one logged observation of a property: a native value plus
// the instant it was recorded. Missing marks an aggregation bucket that
// contained no points; live data never sets it.
type Sample struct {
	Value   any
	Time    Timestamp
	Missing bool
}

// Tid returns the train id carried with the sample's timestamp. It is
// zero for aggregated samples, where no single train produced the value.
func (s Sample) Tid() uint64 {
	return s.Time.Tid
}
