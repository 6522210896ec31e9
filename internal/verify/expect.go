package verify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mpecan/tokf-sub001/internal/utils"
)

// Failure is one assertion that did not hold.
type Failure struct {
	// Index is the position of the [[expect]] block.
	Index int
	Kind  string
	Want  string
	Got   string
}

func (f Failure) Error() string {
	return fmt.Sprintf("expect[%d] %s %q: got %q", f.Index, f.Kind, f.Want, f.Got)
}

// Evaluate checks output against every assertion and returns the ones that
// failed, in declaration order. It has no side effects.
func Evaluate(output string, expects []Expect) []Failure {
	var failures []Failure
	for i, e := range expects {
		i := i
		fail := func(kind, want, got string) {
			failures = append(failures, Failure{Index: i, Kind: kind, Want: want, Got: got})
		}
		short := utils.Truncate(output, 200)

		if e.Contains != nil && !strings.Contains(output, *e.Contains) {
			fail("contains", *e.Contains, short)
		}
		if e.NotContains != nil && strings.Contains(output, *e.NotContains) {
			fail("not_contains", *e.NotContains, short)
		}
		if e.Equals != nil && output != *e.Equals {
			fail("equals", *e.Equals, output)
		}
		if e.StartsWith != nil && !strings.HasPrefix(output, *e.StartsWith) {
			fail("starts_with", *e.StartsWith, short)
		}
		if e.EndsWith != nil && !strings.HasSuffix(output, *e.EndsWith) {
			fail("ends_with", *e.EndsWith, short)
		}
		if e.LineCount != nil {
			if n := len(utils.SplitLines(output)); n != *e.LineCount {
				fail("line_count", strconv.Itoa(*e.LineCount), strconv.Itoa(n))
			}
		}
		if e.Matches != nil {
			re, err := regexp.Compile(*e.Matches)
			if err != nil || !re.MatchString(output) {
				fail("matches", *e.Matches, short)
			}
		}
		if e.NotMatches != nil {
			re, err := regexp.Compile(*e.NotMatches)
			if err != nil || re.MatchString(output) {
				fail("not_matches", *e.NotMatches, short)
			}
		}
	}
	return failures
}
