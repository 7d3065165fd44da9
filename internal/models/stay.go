package models

import (
	"math"
	"time"
)

// MonthsBetween counts whole calendar months from checkIn to checkOut using
// year/month arithmetic only. Days are ignored, so a same-month span is zero.
func MonthsBetween(checkIn, checkOut time.Time) int {
	return (checkOut.Year()-checkIn.Year())*12 + int(checkOut.Month()) - int(checkIn.Month())
}

// MinimumCheckOut is the earliest check-out allowed for a stay starting at checkIn.
// The day is kept when the target month has it, otherwise it becomes that
// month's last day, so Jan 31 plus one month is Feb 29 in a leap year.
func MinimumCheckOut(checkIn time.Time, minStayMonths int) time.Time {
	if minStayMonths < 1 {
		minStayMonths = MinimumStayMonths
	}
	year, month, day := checkIn.Date()
	hour, minute, sec := checkIn.Clock()
	loc := checkIn.Location()

	firstOfTarget := time.Date(year, month+time.Month(minStayMonths), 1, hour, minute, sec, checkIn.Nanosecond(), loc)
	if last := firstOfTarget.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, minute, sec, checkIn.Nanosecond(), loc)
}

// ClampCheckOut moves checkOut up to the minimum stay when it falls short.
// The second result reports whether the date was changed.
func ClampCheckOut(checkIn, checkOut time.Time, minStayMonths int) (time.Time, bool) {
	minimum := MinimumCheckOut(checkIn, minStayMonths)
	if checkOut.Before(minimum) {
		return minimum, true
	}
	return checkOut, false
}

// TotalPrice is months * pricePerBed * seats in major currency units.
func TotalPrice(months int, pricePerBed float64, seats int) float64 {
	return float64(months) * pricePerBed * float64(seats)
}

// ToMinorUnits converts a major-unit amount to the integer the processor expects.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * MinorUnitsPerMajor))
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / MinorUnitsPerMajor
}
