package vehicle

// Zone is the pricing classification of a trip path
type Zone string

const (
	ZoneWide   Zone = "wide"
	ZoneNarrow Zone = "narrow"
)

// Label returns the text used for the zone on invoices and reports.
func (z Zone) Label() string {
	if z == ZoneWide {
		return "wide city area"
	}
	return "narrow city area"
}

// ParseZoneLabel maps an invoice label back to a Zone.
func ParseZoneLabel(label string) (Zone, bool) {
	switch label {
	case "wide city area", "wide":
		return ZoneWide, true
	case "narrow city area", "narrow":
		return ZoneNarrow, true
	}
	return "", false
}

// CityMap describes the grid and its inner narrow rectangle. Bounds are
// inclusive and apply to both axes.
type CityMap struct {
	Size      int `json:"size" yaml:"size"`
	NarrowMin int `json:"narrow_min" yaml:"narrow_min"`
	NarrowMax int `json:"narrow_max" yaml:"narrow_max"`
}

// DefaultCityMap is the 20x20 city with a [5,14] downtown.
var DefaultCityMap = CityMap{Size: 20, NarrowMin: 5, NarrowMax: 14}

// Contains reports whether p lies on the grid.
func (m CityMap) Contains(p Position) bool {
	return p.X >= 0 && p.X < m.Size && p.Y >= 0 && p.Y < m.Size
}

// InNarrow reports whether p lies inside the narrow rectangle.
func (m CityMap) InNarrow(p Position) bool {
	return p.X >= m.NarrowMin && p.X <= m.NarrowMax &&
		p.Y >= m.NarrowMin && p.Y <= m.NarrowMax
}

// Classify returns ZoneWide if any cell of path leaves the narrow rectangle.
func (m CityMap) Classify(path []Position) Zone {
	for _, p := range path {
		if !m.InNarrow(p) {
			return ZoneWide
		}
	}
	return ZoneNarrow
}
