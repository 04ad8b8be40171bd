package forms

import (
	"strings"

	"github.com/proinvest/advisor/internal/interrupt"
)

// ParsePersons reads the person count control. Like a browser number input
// it takes the leading integer, so "3 adults" is 3; anything that does not
// start with a positive integer becomes 1 and the result never exceeds 20.
func ParsePersons(s string) int {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		digits++
		if n <= 20 {
			n = n*10 + int(r-'0')
		}
	}
	if digits == 0 || neg {
		return 1
	}
	return interrupt.ClampPersons(n)
}
