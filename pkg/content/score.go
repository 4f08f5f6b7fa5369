package content

import "strconv"

// Score is a 1-5 rating returned by the guardrail, query and rate endpoints.
// The service reports a model failure in-band as ScoreUnknown.
type Score int

const (
	ScoreUnknown Score = -1
	ScoreMin     Score = 1
	ScoreMax     Score = 5
)

// Known reports whether s is a real 1-5 rating.
func (s Score) Known() bool {
	return s >= ScoreMin && s <= ScoreMax
}

func (s Score) String() string {
	if !s.Known() {
		return "unknown"
	}
	return strconv.Itoa(int(s))
}
