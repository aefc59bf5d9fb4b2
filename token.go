package cartflow

import (
	"fmt"
	"strconv"
	"strings"
)

// ToToken renders a stream revision as an opaque weak entity tag, W/"<rev>".
func ToToken(revision int64) string {
	return `W/"` + strconv.FormatInt(revision, 10) + `"`
}

// FromToken parses a token produced by ToToken. The strong form "<rev>" and
// a bare number are accepted as well. Revisions below NoStream are rejected.
func FromToken(token string) (int64, error) {
	raw := strings.TrimSpace(token)
	raw = strings.TrimPrefix(raw, "W/")
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		raw = raw[1 : len(raw)-1]
	}

	rev, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || rev < NoStream {
		return 0, fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	return rev, nil
}

// Expectation is the revision a caller claims to have observed, if any.
// The zero value means the caller made no claim.
type Expectation struct {
	revision int64
	set      bool
}

// NoExpectation returns an Expectation that accepts any current revision.
func NoExpectation() Expectation {
	return Expectation{}
}

// ExpectRevision returns an Expectation for an exact revision.
func ExpectRevision(revision int64) Expectation {
	return Expectation{revision: revision, set: true}
}

// ParseExpectation turns an optional token into an Expectation. An empty
// token yields NoExpectation.
func ParseExpectation(token string) (Expectation, error) {
	if strings.TrimSpace(token) == "" {
		return NoExpectation(), nil
	}
	rev, err := FromToken(token)
	if err != nil {
		return Expectation{}, err
	}
	return ExpectRevision(rev), nil
}

// Revision returns the expected revision and whether one was set.
func (e Expectation) Revision() (int64, bool) {
	return e.revision, e.set
}

// IsSet reports whether the caller supplied a revision.
func (e Expectation) IsSet() bool {
	return e.set
}

// Matches reports whether current satisfies the expectation.
func (e Expectation) Matches(current int64) bool {
	return !e.set || e.revision == current
}

func (e Expectation) String() string {
	if !e.set {
		return "none"
	}
	return ToToken(e.revision)
}
