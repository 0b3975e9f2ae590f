// Package validator gates SPARQL query strings before they reach the
// read-only knowledge-graph endpoint.
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the outcome of validating a single SPARQL query string.
type Verdict struct {
	OK     bool
	Reason string
}

// blockedKeywords is the SPARQL mutation/admin vocabulary. The scan is a
// case-insensitive substring match: it over-rejects keywords appearing
// inside string literals or comments, which is accepted as a defense-in-depth
// tradeoff on a read-only endpoint.
var blockedKeywords = []string{
	"DELETE",
	"INSERT",
	"DROP",
	"CREATE",
	"CLEAR",
	"LOAD",
	"COPY",
	"MOVE",
	"ADD",
}

// queryFormRe matches any SPARQL query or update form as a standalone word.
// Update forms count as syntactically valid here so that the policy scan, not
// the syntax check, is what rejects them and names the offending keyword.
var queryFormRe = regexp.MustCompile(`\b(SELECT|ASK|CONSTRUCT|DESCRIBE|DELETE|INSERT|LOAD|CLEAR|CREATE|DROP|COPY|MOVE|ADD|WITH)\b`)

// Validate checks a query for well-formedness and then for write/admin
// keywords. It performs no network I/O.
func Validate(query string) Verdict {
	if err := checkSyntax(query); err != nil {
		return Verdict{Reason: fmt.Sprintf("syntax error: %v", err)}
	}
	if kw := findBlockedKeyword(query); kw != "" {
		return Verdict{Reason: fmt.Sprintf("blocked keyword %s: only read-only queries are allowed", kw)}
	}
	return Verdict{OK: true}
}

func findBlockedKeyword(query string) string {
	upper := strings.ToUpper(query)
	for _, kw := range blockedKeywords {
		if strings.Contains(upper, kw) {
			return kw
		}
	}
	return ""
}

// needsGroupPattern lists the query forms whose grammar requires a group
// graph pattern. DESCRIBE may legally name a resource with no pattern at all.
var needsGroupPattern = map[string]bool{
	"SELECT":    true,
	"ASK":       true,
	"CONSTRUCT": true,
}

// checkSyntax is a structural scan, not a full grammar: it verifies the query
// is non-empty, names a known query form followed by a group graph pattern
// where the form requires one, has balanced delimiters, and has no
// unterminated string literal. Malformed queries fail fast here with a reason
// the model can use to self-correct instead of wasting a network round trip.
func checkSyntax(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return errors.New("empty query")
	}
	if err := scanDelimiters(trimmed); err != nil {
		return err
	}
	form := queryFormRe.FindString(strings.ToUpper(trimmed))
	if form == "" {
		return errors.New("missing query form (expected SELECT, ASK, CONSTRUCT or DESCRIBE)")
	}
	if needsGroupPattern[form] && !strings.Contains(trimmed, "{") {
		return fmt.Errorf("%s query has no group graph pattern", form)
	}
	return nil
}

func scanDelimiters(s string) error {
	var stack []rune
	var inSingle, inDouble, escaped bool

	pair := map[rune]rune{'}': '{', ')': '(', ']': '['}

	for i := 0; i < len(s); i++ {
		c := rune(s[i])

		if escaped {
			escaped = false
			continue
		}

		switch {
		case inSingle:
			if c == '\\' {
				escaped = true
			} else if c == '\'' {
				inSingle = false
			}
		case inDouble:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '#':
			// comment runs to end of line
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '{' || c == '(' || c == '[':
			stack = append(stack, c)
		case c == '}' || c == ')' || c == ']':
			if len(stack) == 0 || stack[len(stack)-1] != pair[c] {
				return fmt.Errorf("unexpected %q", c)
			}
			stack = stack[:len(stack)-1]
		}
	}

	if inSingle || inDouble {
		return errors.New("unterminated string literal")
	}
	if len(stack) > 0 {
		return fmt.Errorf("unbalanced delimiters: %q is never closed", stack[len(stack)-1])
	}
	return nil
}
