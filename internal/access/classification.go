package access

import "fmt"

// Classification is the sensitivity label attached to a provenance entry.
// Levels are totally ordered from least to most restrictive; ordering is
// the only operation performed on them.
type Classification int

const (
	ClassificationWhite Classification = iota
	ClassificationGreen
	ClassificationAmber
	ClassificationRed
)

var classificationNames = [...]string{"white", "green", "amber", "red"}

// String returns the lowercase label name.
func (c Classification) String() string {
	if !c.Valid() {
		return fmt.Sprintf("classification(%d)", int(c))
	}
	return classificationNames[c]
}

// Valid reports whether c is one of the four defined levels.
func (c Classification) Valid() bool {
	return c >= ClassificationWhite && c <= ClassificationRed
}

// ParseClassification maps a label name to its level.
func ParseClassification(s string) (Classification, error) {
	for i, name := range classificationNames {
		if s == name {
			return Classification(i), nil
		}
	}
	return 0, fmt.Errorf("access: unknown classification %q", s)
}
