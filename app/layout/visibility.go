// Package layout holds the pure helpers the rendering layer drives directly:
// viewport visibility, masonry column distribution, and scroll position
// restoration. Nothing here owns feed state; layout measurements flow in as a
// side channel of drawing.
package layout

// Entry is one rendered item's measured position along the scroll axis.
type Entry struct {
	ID     string
	Offset float64
	Extent float64
}

// VisibleIDs returns the IDs whose [Offset, Offset+Extent) interval intersects
// the viewport [scrollOffset-buffer, scrollOffset+viewport+buffer), where
// buffer = bufferRatio * viewport. Order follows the input entries. Used for
// media activation only, never for pagination decisions.
func VisibleIDs(entries []Entry, scrollOffset, viewport, bufferRatio float64) []string {
	buffer := bufferRatio * viewport
	min := scrollOffset - buffer
	max := scrollOffset + viewport + buffer

	var visible []string
	for _, e := range entries {
		if e.Extent <= 0 {
			continue
		}
		if e.Offset < max && e.Offset+e.Extent > min {
			visible = append(visible, e.ID)
		}
	}
	return visible
}
