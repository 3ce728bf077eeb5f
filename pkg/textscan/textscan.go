// Package textscan implements a thin keyword-based text-scan collaborator:
// case-insensitive, word-boundary matching against a blocking list and a
// warning list, with blocking taking precedence.
package textscan

import (
	"fmt"
	"regexp"
)

// Severity is the tagged scan outcome.
type Severity string

const (
	Safe    Severity = "safe"
	Warning Severity = "warning"
	Blocked Severity = "blocked"
)

// Detail carries the reason for a non-safe verdict.
type Detail struct {
	Severity       Severity `json:"severity"`
	Reason         string   `json:"reason,omitempty"`
	MatchedKeyword string   `json:"matchedKeyword,omitempty"`
}

// Result is the {status, detail} shape returned over the wire.
type Result struct {
	Status Severity `json:"status"`
	Detail Detail   `json:"detail"`
}

// Scanner holds compiled keyword patterns for the blocking and warning
// lists, each word-boundary and case-insensitive.
type Scanner struct {
	blocking []*keyword
	warning  []*keyword
}

type keyword struct {
	word string
	re   *regexp.Regexp
}

// New compiles a Scanner from plain keyword lists.
func New(blockingWords, warningWords []string) (*Scanner, error) {
	blocking, err := compileAll(blockingWords)
	if err != nil {
		return nil, fmt.Errorf("textscan: compile blocking list: %w", err)
	}
	warning, err := compileAll(warningWords)
	if err != nil {
		return nil, fmt.Errorf("textscan: compile warning list: %w", err)
	}
	return &Scanner{blocking: blocking, warning: warning}, nil
}

func compileAll(words []string) ([]*keyword, error) {
	out := make([]*keyword, 0, len(words))
	for _, w := range words {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		if err != nil {
			return nil, err
		}
		out = append(out, &keyword{word: w, re: re})
	}
	return out, nil
}

// Scan checks text against the blocking list first, then the warning
// list, returning the first match in each; "safe" if neither matches.
func (s *Scanner) Scan(text string) Result {
	if kw := firstMatch(s.blocking, text); kw != "" {
		return Result{
			Status: Blocked,
			Detail: Detail{Severity: Blocked, Reason: "matched blocking keyword", MatchedKeyword: kw},
		}
	}
	if kw := firstMatch(s.warning, text); kw != "" {
		return Result{
			Status: Warning,
			Detail: Detail{Severity: Warning, Reason: "matched warning keyword", MatchedKeyword: kw},
		}
	}
	return Result{Status: Safe, Detail: Detail{Severity: Safe}}
}

func firstMatch(keywords []*keyword, text string) string {
	for _, kw := range keywords {
		if kw.re.MatchString(text) {
			return kw.word
		}
	}
	return ""
}
