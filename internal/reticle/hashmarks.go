package reticle

// Axis identifies a reticle axis.
type Axis string

const (
	AxisHorizontal Axis = "horizontal"
	AxisVertical   Axis = "vertical"
)

// majorEvery is the mil interval of the long hash marks.
const majorEvery = 5

// HashMark is a single mil tick on one axis, Offset pixels from center.
type HashMark struct {
	Axis   Axis    `json:"axis"`
	Mil    int     `json:"mil"`
	Offset float64 `json:"offset"`
	Major  bool    `json:"major"`
}

// HashMarks returns the mil ticks that fit inside the reticle radius on both
// axes, excluding the center. Ticks come in pairs ordered by distance from
// center, horizontal before vertical.
func (p *Projector) HashMarks() []HashMark {
	spacing := p.PixelsPerMil()
	radius := p.cfg.Diameter / 2
	n := int(radius / spacing)

	marks := make([]HashMark, 0, n*4)
	for mil := 1; mil <= n; mil++ {
		off := float64(mil) * spacing
		major := mil%majorEvery == 0
		for _, axis := range []Axis{AxisHorizontal, AxisVertical} {
			marks = append(marks,
				HashMark{Axis: axis, Mil: -mil, Offset: -off, Major: major},
				HashMark{Axis: axis, Mil: mil, Offset: off, Major: major},
			)
		}
	}
	return marks
}
