package freshness

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// §  5.6.7.  Date/Time Formats (RFC 9110)
// §
// §     A recipient that parses a timestamp value in an HTTP field MUST
// §     accept all three HTTP-date formats.
//
// HttpDate parses an HTTP-date in the IMF-fixdate, RFC 850 or asctime format.
// Matching is case-insensitive, as caches are allowed to relax it.
func HttpDate(dateStr string) (time.Time, error) {
	str := strings.ToUpper(strings.TrimSpace(dateStr))
	if str == "" {
		return time.Time{}, fmt.Errorf("Empty date")
	}
	date, err := imfDate(str)
	if err == nil {
		return date, nil
	}
	if date, obsErr := time.Parse(time.RFC850, str); obsErr == nil {
		return date, nil
	}
	if date, obsErr := time.Parse(time.ANSIC, str); obsErr == nil {
		return date, nil
	}
	// return the error for the preferred format
	return time.Time{}, err
}

const imfDateLayout = "Mon, 02 Jan 2006 15:04:05 MST"

func imfDate(str string) (time.Time, error) {
	date, err := time.Parse(imfDateLayout, str)
	if err != nil {
		return date, err
	}
	if zone, offset := date.Zone(); zone != "GMT" || offset != 0 {
		return date, fmt.Errorf("Date %s is not in GMT time, but %s", date, zone)
	}
	return date.UTC(), nil
}

// ToHttpDate formats a time as an IMF-fixdate.
func ToHttpDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
