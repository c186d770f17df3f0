package behavior

// Value is the raw cell stored on a node: four numeric slots plus one text
// slot. Node kinds interpret the slots differently; the accessors below cover
// the common layouts.
type Value struct {
	A    float64 `json:"a" yaml:"a"`
	B    float64 `json:"b" yaml:"b"`
	C    float64 `json:"c" yaml:"c"`
	D    float64 `json:"d" yaml:"d"`
	Text string  `json:"text,omitempty" yaml:"text,omitempty"`
}

// NumberValue builds a cell holding a single number in the first slot.
func NumberValue(v float64) Value {
	return Value{A: v}
}

// TextValue builds a cell holding only text, e.g. an expression source.
func TextValue(s string) Value {
	return Value{Text: s}
}

// CellValue builds a cell holding a grid coordinate. The map id lives in the
// text slot; an empty map id means "same map as the acting instance".
func CellValue(mapID string, x, y int) Value {
	return Value{A: float64(x), B: float64(y), Text: mapID}
}

// Number returns the first numeric slot.
func (v Value) Number() float64 {
	return v.A
}

// Expression returns the text slot.
func (v Value) Expression() string {
	return v.Text
}

// Cell returns the coordinate stored by CellValue.
func (v Value) Cell() (mapID string, x, y int) {
	return v.Text, int(v.A), int(v.B)
}
