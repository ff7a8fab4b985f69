package basket

import (
	"strconv"
	"strings"
)

// ParseQuantityInput interprets text typed into a quantity field. Empty,
// non-numeric, negative and fractional input keeps previous; an explicit 0
// means remove.
func ParseQuantityInput(text string, previous int) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return previous
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return previous
	}
	return n
}
