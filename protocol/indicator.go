package protocol

const IndicatorCount = 3

// IndicatorPattern holds which of the three status outputs are lit.
type IndicatorPattern [IndicatorCount]bool

// PatternFor derives the output pattern from the low three bits of b.
// Output i is lit while b%8 lies in (i, i+4], giving a walking bar over eight values.
func PatternFor(b byte) IndicatorPattern {
	var p IndicatorPattern
	m := b % 8
	for i := range p {
		p[i] = m > byte(i) && m <= byte(i)+4
	}
	return p
}

// Levels returns the pin levels for active-low outputs.
func (p IndicatorPattern) Levels() [IndicatorCount]bool {
	var l [IndicatorCount]bool
	for i, lit := range p {
		l[i] = !lit
	}
	return l
}

func (p IndicatorPattern) Off() bool {
	return p == IndicatorPattern{}
}
