package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatMoney renders an amount with two decimals and thousand separators, e.g. 12,500.00.
func FormatMoney(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	cents := int64(math.Round(amount * 100))
	return fmt.Sprintf("%s%s.%02d", sign, formatThousand(cents/100), cents%100)
}

// RoundMoney rounds to whole cents.
func RoundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}

func formatThousand(n int64) string {
	str := strconv.FormatInt(n, 10)
	var out strings.Builder
	for i, c := range str {
		if i != 0 && (len(str)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	return out.String()
}
