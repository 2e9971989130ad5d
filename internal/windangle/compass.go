package windangle

import "github.com/shottracker/shottracker/pkg/core"

var compassPoints = [...]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Compass returns the closest 16-point compass label for a bearing.
func Compass(b core.Bearing) string {
	h := float64(Normalize(b + 11.25)) // [0,22.5) is now north
	return compassPoints[int(h/22.5)%len(compassPoints)]
}

// Category describes how a relative wind angle acts on the bullet.
type Category int

const (
	HeadTail Category = iota
	Quartering
	FullValue
)

func (c Category) String() string {
	switch c {
	case HeadTail:
		return "head/tail"
	case Quartering:
		return "quartering"
	case FullValue:
		return "full value"
	default:
		return "unknown"
	}
}

// Classify buckets a relative wind angle. Both 0 and 180 classify as HeadTail,
// but Resolve keeps them distinct.
func Classify(angle float64) Category {
	switch {
	case angle <= 22.5 || angle >= 157.5:
		return HeadTail
	case angle >= 67.5 && angle <= 112.5:
		return FullValue
	default:
		return Quartering
	}
}

// MarshalText encodes the category as its label.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
