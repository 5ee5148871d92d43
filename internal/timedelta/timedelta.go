// Package timedelta turns pairs of timestamps into millisecond deltas and
// short human-readable strings like "3.5 Hrs".
package timedelta

import (
	"math"
	"math/big"
	"time"
)

// NotAvailable is printed in place of a delta when an input is missing.
const NotAvailable = "N/A"

const (
	msPerSecond = 1000.0
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// MsDiff returns the absolute distance between a and b in milliseconds, or 0
// if either timestamp is missing.
func MsDiff(a, b *time.Time) int64 {
	if isAbsent(a) || isAbsent(b) {
		return 0
	}
	d := b.Sub(*a).Milliseconds()
	if d < 0 {
		return -d
	}
	return d
}

// Readable formats the distance between a and b, or returns NotAvailable if
// either timestamp is missing.
func Readable(a, b *time.Time) string {
	if isAbsent(a) || isAbsent(b) {
		return NotAvailable
	}
	return FormatMs(float64(MsDiff(a, b)))
}

// FormatMs picks the first unit (seconds, minutes, hours, days) whose value,
// rounded to one decimal, stays under the unit's rollover point.
func FormatMs(ms float64) string {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return NotAvailable
	}

	if tenths := roundTenths(ms / msPerSecond); tenths.Cmp(big.NewInt(600)) < 0 {
		return formatTenths(tenths) + " Sec"
	}
	if tenths := roundTenths(ms / msPerMinute); tenths.Cmp(big.NewInt(600)) < 0 {
		return formatTenths(tenths) + " Min"
	}
	if tenths := roundTenths(ms / msPerHour); tenths.Cmp(big.NewInt(240)) < 0 {
		return formatTenths(tenths) + " Hrs"
	}
	return formatTenths(roundTenths(ms/msPerDay)) + " Days"
}

func isAbsent(t *time.Time) bool {
	return t == nil || t.IsZero()
}

// roundTenths returns v*10 rounded to the nearest integer using the exact
// binary value of v, with ties going toward +Inf.
func roundTenths(v float64) *big.Int {
	x := new(big.Float).SetPrec(256).SetFloat64(v)
	x.Mul(x, big.NewFloat(10))
	x.Add(x, big.NewFloat(0.5))

	n, acc := x.Int(nil)
	// Int truncates toward zero; floor for negative non-integers.
	if x.Sign() < 0 && acc == big.Above {
		n.Sub(n, big.NewInt(1))
	}
	return n
}

func formatTenths(tenths *big.Int) string {
	sign := ""
	abs := new(big.Int).Set(tenths)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}
	whole, frac := new(big.Int).QuoRem(abs, big.NewInt(10), new(big.Int))
	return sign + whole.String() + "." + frac.String()
}
