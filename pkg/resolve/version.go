// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// CompareVersions orders two library versions. Versions that read as
// semantic versions ("3.2.1", "3.3.1-nightly") are compared with semver
// rules; anything else ("1.2.3.4", "20.1_b2") falls back to a segment-wise
// comparison where numeric segments compare as numbers.
func CompareVersions(a, b string) int {
	if a == b {
		return 0
	}
	sa, sb := canonicalSemver(a), canonicalSemver(b)
	if semver.IsValid(sa) && semver.IsValid(sb) {
		if c := semver.Compare(sa, sb); c != 0 {
			return c
		}
		// Build metadata is ignored by semver; keep the order total.
		return strings.Compare(a, b)
	}
	return compareSegments(a, b)
}

func canonicalSemver(v string) string {
	return "v" + strings.TrimPrefix(v, "v")
}

func compareSegments(a, b string) int {
	as, bs := splitSegments(a), splitSegments(b)
	for i := 0; i < len(as) || i < len(bs); i++ {
		if i >= len(as) {
			return -1
		}
		if i >= len(bs) {
			return 1
		}
		x, y := as[i], bs[i]
		xn, xerr := strconv.ParseUint(x, 10, 64)
		yn, yerr := strconv.ParseUint(y, 10, 64)
		switch {
		case xerr == nil && yerr == nil:
			if xn != yn {
				if xn < yn {
					return -1
				}
				return 1
			}
		case xerr == nil:
			// Numeric segments sort after textual qualifiers.
			return 1
		case yerr == nil:
			return -1
		default:
			if c := strings.Compare(x, y); c != 0 {
				return c
			}
		}
	}
	return 0
}

func splitSegments(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-' || r == '_' || r == '+'
	})
}
