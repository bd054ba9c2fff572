// Package sizespec parses the compact size tokens accepted by the thumbnail
// endpoint.
//
// Supported forms:
//
//	{x}x{y}  fixed width and height, crop to fill
//	{x}o{y}  width if x > y, otherwise height
//	x{x}     fixed width, aspect preserved
//	y{y}     fixed height, aspect preserved
//
// Every number has one to four decimal digits.
package sizespec

import (
	"regexp"
	"strconv"

	apperrors "github.com/leeforge/thumbnail/errors"
)

// Mode selects how a Spec resizes an image.
type Mode int

const (
	ModeUndefined Mode = iota
	FixedBoth
	FitEither
	FixedWidth
	FixedHeight
)

func (m Mode) String() string {
	switch m {
	case FixedBoth:
		return "{x}x{y}"
	case FitEither:
		return "{x}o{y}"
	case FixedWidth:
		return "x{x}"
	case FixedHeight:
		return "y{y}"
	default:
		return "undefined"
	}
}

// Forms lists the supported grammars in matching order.
var Forms = []string{FixedBoth.String(), FitEither.String(), FixedWidth.String(), FixedHeight.String()}

// Spec is a parsed size token. X is unset for FixedHeight and Y for FixedWidth.
type Spec struct {
	Mode Mode
	X    int
	Y    int
	Raw  string
}

func (s Spec) String() string {
	return s.Raw
}

type grammar struct {
	mode    Mode
	pattern *regexp.Regexp
}

// Checked in order; the first match wins.
var grammars = []grammar{
	{FixedBoth, regexp.MustCompile(`^([0-9]{1,4})x([0-9]{1,4})$`)},
	{FitEither, regexp.MustCompile(`^([0-9]{1,4})o([0-9]{1,4})$`)},
	{FixedWidth, regexp.MustCompile(`^x([0-9]{1,4})$`)},
	{FixedHeight, regexp.MustCompile(`^y([0-9]{1,4})$`)},
}

// Parse turns raw into a Spec. Non-alphanumeric input fails with an
// illegal-size error; alphanumeric input matching no grammar fails with an
// unsupported-size error.
func Parse(raw string) (Spec, error) {
	if !isAlnum(raw) {
		return Spec{}, apperrors.NewIllegalSize(raw)
	}

	for _, g := range grammars {
		m := g.pattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}

		spec := Spec{Mode: g.mode, Raw: m[0]}
		switch g.mode {
		case FixedBoth, FitEither:
			spec.X = atoi(m[1])
			spec.Y = atoi(m[2])
		case FixedWidth:
			spec.X = atoi(m[1])
		case FixedHeight:
			spec.Y = atoi(m[1])
		}
		return spec, nil
	}

	return Spec{}, apperrors.NewUnsupportedSize(raw, Forms)
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) Spec {
	spec, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return spec
}

// isAlnum reports a non-empty string of ASCII letters and digits.
func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}

// atoi is only fed regex-validated digit runs of at most four characters.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
