package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CodeDigits is the width of the numeric suffix of a can code.
const CodeDigits = 5

var (
	fullCodeRe = regexp.MustCompile(`^([A-Z]+)-?(\d{1,5})$`)
	numberRe   = regexp.MustCompile(`^\d{1,5}$`)
)

// CanCode is a parsed can identifier.
type CanCode struct {
	Prefix string
	Number int
}

// String renders the canonical form, e.g. "A-00042".
func (c CanCode) String() string {
	return fmt.Sprintf("%s%0*d", c.Prefix, CodeDigits, c.Number)
}

// ParseCanCode normalizes raw into the canonical code for prefix. raw may be
// the full code ("A-00042", "a-42", "A42") or just the number ("42").
func ParseCanCode(raw, prefix string) (CanCode, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return CanCode{}, fmt.Errorf("can code is empty")
	}

	var digits string
	switch {
	case numberRe.MatchString(s):
		digits = s
	default:
		m := fullCodeRe.FindStringSubmatch(s)
		if m == nil {
			return CanCode{}, fmt.Errorf("malformed can code %q", raw)
		}
		if m[1]+"-" != prefix {
			return CanCode{}, fmt.Errorf("can code %q must start with %q", raw, prefix)
		}
		digits = m[2]
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return CanCode{}, fmt.Errorf("malformed can code %q: %w", raw, err)
	}
	if n == 0 {
		return CanCode{}, fmt.Errorf("can code %q must be greater than zero", raw)
	}
	return CanCode{Prefix: prefix, Number: n}, nil
}
