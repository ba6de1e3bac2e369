// Package revision orders module revisions.
//
// Revisions that parse as semantic versions are compared with
// Masterminds/semver. Everything else is split into identifiers at '.', '-',
// '_' and '+' boundaries and compared segment by segment: numeric
// identifiers compare numerically and sort before alphanumeric ones, and the
// qualifiers "dev", "rc" and "final" rank below, between and above plain
// words respectively, so "1.0-dev" < "1.0-rc1" < "1.0" < "1.0-final".
package revision

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"
)

// Identifier is one segment of a revision string.
type Identifier struct {
	IsDigitsOnly bool
	AsNumber     uint64 // Only valid if IsDigitsOnly
	AsString     string
}

// ParseIdentifier creates an Identifier from a string segment.
func ParseIdentifier(s string) Identifier {
	if s == "" {
		return Identifier{AsString: s}
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return Identifier{AsString: s}
		}
	}
	num, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Identifier{AsString: s}
	}
	return Identifier{IsDigitsOnly: true, AsNumber: num, AsString: s}
}

// qualifierRank places special words relative to ordinary alphanumeric
// identifiers (rank 0).
var qualifierRank = map[string]int{
	"dev":   -2,
	"alpha": -1,
	"rc":    1,
	"final": 2,
}

func rank(id Identifier) int {
	word := strings.ToLower(strings.TrimRightFunc(id.AsString, unicode.IsDigit))
	return qualifierRank[word]
}

// CompareIdentifiers compares two identifiers.
func CompareIdentifiers(a, b Identifier) int {
	if a.IsDigitsOnly != b.IsDigitsOnly {
		if a.IsDigitsOnly {
			return -1
		}
		return 1
	}
	if a.IsDigitsOnly {
		return cmp.Compare(a.AsNumber, b.AsNumber)
	}
	if c := cmp.Compare(rank(a), rank(b)); c != 0 {
		return c
	}
	return strings.Compare(a.AsString, b.AsString)
}

// Split breaks a revision into identifiers. Digit runs are separated from
// letters so "rc1" becomes "rc", "1".
func Split(rev string) []Identifier {
	var ids []Identifier
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			ids = append(ids, ParseIdentifier(cur.String()))
			cur.Reset()
		}
	}
	var prevDigit bool
	for i, r := range rev {
		switch {
		case r == '.' || r == '-' || r == '_' || r == '+':
			flush()
			continue
		case i > 0 && cur.Len() > 0 && unicode.IsDigit(r) != prevDigit:
			flush()
		}
		cur.WriteRune(r)
		prevDigit = unicode.IsDigit(r)
	}
	flush()
	return ids
}

// Compare compares two revisions. Returns -1 if a < b, 0 if a == b, 1 if a > b.
func Compare(a, b string) int {
	if a == b {
		return 0
	}
	va, errA := semver.StrictNewVersion(a)
	vb, errB := semver.StrictNewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}

	ia, ib := Split(a), Split(b)
	for i := range min(len(ia), len(ib)) {
		if c := CompareIdentifiers(ia[i], ib[i]); c != 0 {
			return c
		}
	}
	// A longer revision is newer unless what follows is a pre-release
	// qualifier: "1.0" > "1.0-rc1" but "1.0.1" > "1.0".
	switch {
	case len(ia) > len(ib):
		if isPreQualifier(ia[len(ib)]) {
			return -1
		}
		return 1
	case len(ia) < len(ib):
		if isPreQualifier(ib[len(ia)]) {
			return 1
		}
		return -1
	}
	return strings.Compare(a, b)
}

func isPreQualifier(id Identifier) bool {
	return !id.IsDigitsOnly && rank(id) <= 1
}

// Sort sorts revisions in ascending order.
func Sort(revs []string) {
	slices.SortFunc(revs, Compare)
}

// Latest returns the highest revision, or "" for an empty slice.
func Latest(revs []string) string {
	if len(revs) == 0 {
		return ""
	}
	return slices.MaxFunc(revs, Compare)
}
