package models

import "time"

const (
	// APITimeLayout renders timestamps in API payloads.
	APITimeLayout = "2006-01-02 15:04:05"
	// DisplayTimeLayout renders timestamps on display surfaces (bot messages).
	DisplayTimeLayout = "02.01.2006 15:04:05"
)

func FormatAPITime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(APITimeLayout)
}

// FormatAPITimePtr returns nil for a nil instant.
func FormatAPITimePtr(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := FormatAPITime(*t, loc)
	return &s
}

func FormatDisplayTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DisplayTimeLayout)
}
