package order

import "fmt"

// CounterScope keys one counter per prefix and calendar year.
func CounterScope(prefix string, year int) string {
	return fmt.Sprintf("%s-%d", prefix, year)
}

// FormatOrderNumber renders a human-readable order number, e.g.
// "ORD-2025-00007" for the 7th allocation of 2025.
func FormatOrderNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, seq)
}
