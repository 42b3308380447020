package trend

import (
	"math"
	"strings"
)

// CurveType selects how raw property values are mapped onto the y axis.
type CurveType int

const (
	// CurveNumeric plots the value itself.
	CurveNumeric CurveType = iota
	// CurveState maps device state names onto integer levels.
	CurveState
	// CurveAlarm maps alarm condition names onto integer levels.
	CurveAlarm
)

// maxNumberLimit caps the magnitude a plotted value may have. Values at
// or beyond it (infinities included) render as gaps rather than
// flattening the autoscaled axis.
const maxNumberLimit = math.MaxFloat32

// stateIntegerMap assigns each device state name a stable integer
// level, grouped so related states plot near each other.
var stateIntegerMap = map[string]int{
	"UNKNOWN":      0,
	"INIT":         1,
	"ERROR":        2,
	"DISABLED":     3,
	"OFF":          4,
	"ON":           5,
	"STOPPED":      6,
	"STARTED":      7,
	"PAUSED":       8,
	"RUNNING":      9,
	"ACQUIRING":    10,
	"PROCESSING":   11,
	"ACTIVE":       12,
	"PASSIVE":      13,
	"CHANGING":     14,
	"MOVING":       15,
	"HOMING":       16,
	"ROTATING":     17,
	"OPENING":      18,
	"CLOSING":      19,
	"OPENED":       20,
	"CLOSED":       21,
	"INTERLOCKED":  22,
	"COOLED":       23,
	"HEATED":       24,
	"EXTRACTED":    25,
	"INSERTED":     26,
	"MONITORING":   27,
	"NORMAL":       28,
	"STATIC":       29,
	"INCREASING":   30,
	"DECREASING":   31,
}

// alarmIntegerMap orders alarm conditions by severity.
var alarmIntegerMap = map[string]int{
	"none":      0,
	"warn":      1,
	"warnLow":   2,
	"warnHigh":  3,
	"alarm":     4,
	"alarmLow":  5,
	"alarmHigh": 6,
	"interlock": 7,
}

// sanitize converts a raw property value into a plottable float for the
// given curve type. Anything unmappable comes back as NaN, which the
// renderer treats as a gap.
func sanitize(ctype CurveType, value any) float64 {
	switch ctype {
	case CurveState:
		s, ok := value.(string)
		if !ok {
			return math.NaN()
		}
		level, ok := stateIntegerMap[strings.ToUpper(s)]
		if !ok {
			return math.NaN()
		}
		return float64(level)
	case CurveAlarm:
		s, ok := value.(string)
		if !ok {
			return math.NaN()
		}
		level, ok := alarmIntegerMap[s]
		if !ok {
			return math.NaN()
		}
		return float64(level)
	default:
		v, ok := toFloat(value)
		if !ok || math.Abs(v) >= maxNumberLimit {
			return math.NaN()
		}
		return v
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
