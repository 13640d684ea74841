package freshness

import (
	"net/http"
	"testing"
	"time"
)

func TestMaxAge(t *testing.T) {
	cc := ParseCacheControl("max-age=60")
	val, ok := cc.MaxAge()
	if !ok {
		t.Fatal("Could not get directive")
	}
	if val != 60 {
		t.Fatalf("Value is %d", val)
	}
}

func TestReal(t *testing.T) {
	cc := ParseCacheControl("public, max-age=0, s-maxage=600")
	if val, ok := cc.Get("public"); !ok || val != "" {
		t.Fatalf("val: '%s', ok: %v", val, ok)
	}
	if val, ok := cc.Get("max-age"); !ok || val != "0" {
		t.Fatalf("val: '%s', ok: %v", val, ok)
	}
	if val, ok := cc.Get("s-maxage"); !ok || val != "600" {
		t.Fatalf("val: '%s', ok: %v", val, ok)
	}
}

func TestInvalidMaxAge(t *testing.T) {
	for _, header := range []string{"max-age", "max-age=abc", "max-age=-5", "max-age=\"\""} {
		if _, ok := ParseCacheControl(header).MaxAge(); ok {
			t.Fatalf("max-age valid for %q", header)
		}
	}
	if val, ok := ParseCacheControl("MAX-AGE=\"10\"").MaxAge(); !ok || val != 10 {
		t.Fatalf("val: %d, ok: %v", val, ok)
	}
}

func TestReplaceMaxAge(t *testing.T) {
	cases := []struct{ in, want string }{
		{"public, max-age=1000000", "public, max-age=42"},
		{"max-age=1, must-revalidate", "max-age=42, must-revalidate"},
		{"no-cache", "no-cache"},
		{"s-maxage=5, max-age=7, max-age=9", "s-maxage=5, max-age=42, max-age=9"},
		{"public, MAX-AGE=1000", "public, max-age=42"},
		{`max-age="60", private`, "max-age=42, private"},
	}
	for _, c := range cases {
		if got := ReplaceMaxAge(c.in, 42); got != c.want {
			t.Fatalf("ReplaceMaxAge(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestHttpDateRFC850(t *testing.T) {
	_, err := HttpDate("Thursday, 18-Aug-50 02:01:18 GMT")
	if err != nil {
		t.Fatalf("Error parsing date %+v", err)
	}
}

func TestHttpDateTZCase(t *testing.T) {
	_, err := HttpDate("Thu, 18 Aug 2050 02:01:18 gMT")
	if err != nil {
		t.Fatalf("Error parsing date %+v", err)
	}
}

func TestHttpDateRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	date, err := HttpDate(ToHttpDate(now))
	if err != nil || !date.Equal(now) {
		t.Fatalf("Date is %v, err %v", date, err)
	}
	if _, err := HttpDate("0"); err == nil {
		t.Fatal("Invalid date parsed")
	}
}

func TestDeriveFromMaxAge(t *testing.T) {
	received := time.Unix(1700000000, 0)
	h := http.Header{}
	h.Set("Cache-Control", "public, max-age=1000000")
	h.Set("Expires", ToHttpDate(received.Add(time.Hour)))
	h.Set("ETag", `"myetag"`)
	md := Derive(h, received)
	if md.MaxAge != 1000000 {
		t.Fatalf("MaxAge is %d", md.MaxAge)
	}
	if md.ETag != `"myetag"` || md.CacheControl != "public, max-age=1000000" {
		t.Fatalf("Metadata is %+v", md)
	}
	if !md.CachedAt.Equal(received) {
		t.Fatalf("CachedAt is %v", md.CachedAt)
	}
}

func TestDeriveJoinsCacheControlLines(t *testing.T) {
	h := http.Header{}
	h.Add("Cache-Control", "public")
	h.Add("Cache-Control", "max-age=600")
	md := Derive(h, time.Unix(1700000000, 0))
	if md.MaxAge != 600 || md.CacheControl != "public, max-age=600" {
		t.Fatalf("Metadata is %+v", md)
	}
	if cc := ReplaceMaxAge(md.CacheControl, 300); cc != "public, max-age=300" {
		t.Fatalf("Cache-Control is %s", cc)
	}
}

func TestDeriveFromExpiresAndDate(t *testing.T) {
	date := time.Unix(1700000000, 0)
	h := http.Header{}
	h.Set("Date", ToHttpDate(date))
	h.Set("Expires", ToHttpDate(date.Add(90*time.Second)))
	md := Derive(h, date.Add(time.Hour))
	if md.MaxAge != 90 {
		t.Fatalf("MaxAge is %d", md.MaxAge)
	}
	if !md.CachedAt.Equal(date) {
		t.Fatalf("CachedAt is %v, expected the Date header", md.CachedAt)
	}

	h.Set("Expires", ToHttpDate(date.Add(-30*time.Second)))
	if md := Derive(h, date); md.MaxAge != -30 {
		t.Fatalf("MaxAge for past Expires is %d", md.MaxAge)
	}
}

func TestDeriveDegradesToNoFreshness(t *testing.T) {
	received := time.Unix(1700000000, 0)
	h := http.Header{}
	h.Set("Date", "yesterday")
	h.Set("Expires", "0")
	h.Set("Cache-Control", "max-age=soon")
	md := Derive(h, received)
	if md.MaxAge != 0 {
		t.Fatalf("MaxAge is %d", md.MaxAge)
	}
	if !md.CachedAt.Equal(received) || !md.Date.IsZero() || !md.Expires.IsZero() {
		t.Fatalf("Metadata is %+v", md)
	}
}

func TestRemaining(t *testing.T) {
	cachedAt := time.Unix(1700000000, 0)
	if left, ok := Remaining(1000000, cachedAt, cachedAt.Add(1200*time.Millisecond)); !ok || left != 999998 {
		t.Fatalf("left: %d, ok: %v", left, ok)
	}
	if left, ok := Remaining(10, cachedAt, cachedAt.Add(time.Millisecond)); !ok || left != 9 {
		t.Fatalf("left: %d, ok: %v", left, ok)
	}
	if _, ok := Remaining(10, cachedAt, cachedAt.Add(10*time.Second)); ok {
		t.Fatal("Fresh at the end of the window")
	}
	if _, ok := Remaining(0, cachedAt, cachedAt); ok {
		t.Fatal("Fresh without max-age")
	}
	if _, ok := Remaining(-5, cachedAt, cachedAt); ok {
		t.Fatal("Fresh with negative max-age")
	}
	if left, ok := Remaining(10, cachedAt.Add(time.Minute), cachedAt); !ok || left != 10 {
		t.Fatalf("Future date: left: %d, ok: %v", left, ok)
	}
}
