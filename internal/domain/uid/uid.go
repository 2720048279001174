// Package uid parses railway fitting identifiers of the form
// IR<YY>-Z<ZZZ>-V<VVV>-B<BBB>-<SSSSSS>.
package uid

import (
	"regexp"
	"strings"
)

// Zone 001-018, vendor 001-008, batch 001-999. Year and serial are unchecked.
var pattern = regexp.MustCompile(
	`^IR([0-9]{2})-Z(0(?:0[1-9]|1[0-8]))-V(00[1-8])-B(00[1-9]|0[1-9][0-9]|[1-9][0-9]{2})-([0-9]{6})$`,
)

// Identifier is a fitting identifier that matched the full grammar.
type Identifier struct {
	Year   string `json:"year"`
	Zone   string `json:"zone"`
	Vendor string `json:"vendor"`
	Batch  string `json:"batch"`
	Serial string `json:"serial"`
}

// Validate trims input and matches it against the identifier grammar.
// The second return value is false when the input does not match; the
// returned Identifier is then the zero value.
//
// Year is widened to four digits by prefixing "20", so identifiers are
// assumed to be issued between 2000 and 2099.
func Validate(input string) (Identifier, bool) {
	m := pattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return Identifier{}, false
	}
	return Identifier{
		Year:   "20" + m[1],
		Zone:   "Z" + m[2],
		Vendor: "V" + m[3],
		Batch:  "B" + m[4],
		Serial: m[5],
	}, true
}

// String renders the identifier back into its canonical text form.
func (id Identifier) String() string {
	if id == (Identifier{}) {
		return ""
	}
	yy := strings.TrimPrefix(id.Year, "20")
	return "IR" + yy + "-" + id.Zone + "-" + id.Vendor + "-" + id.Batch + "-" + id.Serial
}
