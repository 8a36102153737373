// Package rangematch evaluates whether a concrete package version falls
// inside a vulnerability's affected-version ranges.
//
// Range grammar: top-level entries are OR'd together; within an entry "||"
// separates alternative groups; within a group, comma or space separated
// "op version" terms (op in <, <=, >, >=, =) are AND'd.
package rangematch

import (
	"fmt"
	"strings"

	"github.com/nttcom/threatconnectome-sub003/internal/ecosystem"
	"github.com/nttcom/threatconnectome-sub003/internal/version"
)

// Result is the outcome of a range evaluation.
type Result int

const (
	// Unknown means the evaluation could not be completed; callers must
	// assume the version is threatened.
	Unknown Result = iota
	// Matched means the version is inside an affected range.
	Matched
	// NotMatched means every range fully excludes the version.
	NotMatched
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case Matched:
		return "matched"
	case NotMatched:
		return "not_matched"
	default:
		return "unknown"
	}
}

type comparator struct {
	op    string
	bound version.Comparable
}

// Match evaluates versionStr against affectedRanges under the ecosystem's
// version rules. Any parse failure anywhere in the evaluation, or an empty
// range list, yields Unknown: without complete range data a vulnerability
// cannot be ruled out.
func Match(versionStr, eco string, affectedRanges []string) Result {
	if len(affectedRanges) == 0 {
		return Unknown
	}

	family := ecosystem.Classify(eco)
	concrete, err := version.Parse(family, versionStr)
	if err != nil {
		return Unknown
	}

	// Parse every bound up front so that a malformed term in one entry
	// cannot be masked by a match in another.
	groups := make([][]comparator, 0, len(affectedRanges))
	for _, entry := range affectedRanges {
		for _, group := range strings.Split(entry, "||") {
			terms, err := parseGroup(family, group)
			if err != nil {
				return Unknown
			}
			if len(terms) == 0 {
				continue
			}
			groups = append(groups, terms)
		}
	}
	if len(groups) == 0 {
		return Unknown
	}

	for _, terms := range groups {
		satisfied := true
		for _, term := range terms {
			ok, err := term.holds(concrete)
			if err != nil {
				return Unknown
			}
			if !ok {
				satisfied = false
				break
			}
		}
		if satisfied {
			return Matched
		}
	}
	return NotMatched
}

func (c comparator) holds(concrete version.Comparable) (bool, error) {
	cmp, err := concrete.Compare(c.bound)
	if err != nil {
		return false, err
	}
	switch c.op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	case "=":
		return cmp == 0, nil
	default:
		return false, fmt.Errorf("unknown comparator operator %q", c.op)
	}
}

// parseGroup tokenizes one AND group, e.g. "> 3.0, < 4.0" or ">=1.2 <2.0".
func parseGroup(family ecosystem.Family, group string) ([]comparator, error) {
	fields := strings.Fields(strings.ReplaceAll(group, ",", " "))

	var terms []comparator
	for i := 0; i < len(fields); i++ {
		op, rest := splitOperator(fields[i])
		if op == "" {
			return nil, fmt.Errorf("comparator term %q has no operator", fields[i])
		}
		if rest == "" {
			i++
			if i >= len(fields) {
				return nil, fmt.Errorf("comparator %q has no version bound", op)
			}
			rest = fields[i]
		}
		bound, err := version.Parse(family, rest)
		if err != nil {
			return nil, err
		}
		terms = append(terms, comparator{op: op, bound: bound})
	}
	return terms, nil
}

func splitOperator(token string) (op, rest string) {
	for _, candidate := range []string{"<=", ">=", "<", ">", "="} {
		if strings.HasPrefix(token, candidate) {
			return candidate, token[len(candidate):]
		}
	}
	return "", token
}
