package rating

// Band is one contiguous slice of the rating scale with its label.
// A rating r belongs to the first band whose Below is greater than r.
type Band struct {
	Below int
	Label string
}

// Bands are ordered ascending. The last band is open-ended.
var Bands = []Band{
	{Below: 800, Label: "Beginning Reader"},
	{Below: 1000, Label: "Developing Reader"},
	{Below: 1200, Label: "Proficient Reader"},
	{Below: 1400, Label: "Skilled Reader"},
	{Below: 1600, Label: "Advanced Reader"},
	{Below: 1800, Label: "Expert Reader"},
	{Below: 0, Label: "Master Reader"},
}

// ReadingLevel maps a rating to a human label.
func ReadingLevel(r float64) string {
	last := len(Bands) - 1
	for _, b := range Bands[:last] {
		if r < float64(b.Below) {
			return b.Label
		}
	}
	return Bands[last].Label
}
