package cmd

import (
	"fmt"
	"strconv"
)

// formatRupiah renders an amount with dot thousands separators, e.g. "Rp 1.250.000".
func formatRupiah(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, digits[i])
	}
	return "Rp " + sign + string(out)
}

// formatLatency formats a millisecond duration: sub-millisecond as "< 1ms".
func formatLatency(ms float64) string {
	if ms < 1 {
		return "< 1ms"
	}
	return fmt.Sprintf("%.0fms", ms)
}

// maskNIK keeps the last four digits of an identity number.
func maskNIK(nik string) string {
	if len(nik) <= 4 {
		return nik
	}
	return "************"[:min(12, len(nik)-4)] + nik[len(nik)-4:]
}
