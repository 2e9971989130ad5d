package reticle

import (
	"fmt"
	"math"
)

// FormatLinear renders inches as feet and inches, e.g. `1' 1"` or `-5"`.
// The value is rounded to the nearest inch before it is split; the feet part
// is omitted when zero. NaN and infinities render as `0"`.
func FormatLinear(inches float64) string {
	if math.IsNaN(inches) || math.IsInf(inches, 0) {
		return `0"`
	}

	// Float math keeps values beyond the int64 range from wrapping.
	total := math.Round(math.Abs(inches))
	sign := ""
	if inches < 0 && total != 0 {
		sign = "-"
	}

	rem := math.Mod(total, 12)
	feet := math.Round((total - rem) / 12)
	if feet == 0 {
		return fmt.Sprintf(`%s%.0f"`, sign, rem)
	}
	return fmt.Sprintf(`%s%.0f' %.0f"`, sign, feet, rem)
}
