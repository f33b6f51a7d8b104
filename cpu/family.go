package cpu

// Family identifies the minimum processor generation an encoding needs.
type Family int

// Processor families in ascending order.
const (
	I8086 Family = iota
	I186
	I386
	I486
)

// String returns the conventional name of the family.
func (f Family) String() string {
	switch f {
	case I8086:
		return "8086"
	case I186:
		return "80186"
	case I386:
		return "80386"
	case I486:
		return "80486"
	}
	return "unknown"
}
