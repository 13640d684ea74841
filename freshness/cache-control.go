package freshness

import (
	"regexp"
	"strconv"
	"strings"
)

// §  5.2.  Cache-Control
// §
// §    Cache-Control   = #cache-directive
// §
// §    cache-directive = token [ "=" ( token / quoted-string ) ]

type CacheControl struct {
	directives map[string]string
}

func (c CacheControl) Get(directive string) (string, bool) {
	val, ok := c.directives[directive]
	return val, ok
}

// ParseCacheControl takes Cache-Control header lines and returns an instance of `CacheControl`.
// The first occurrence of a directive wins.
func ParseCacheControl(headers ...string) CacheControl {
	m := make(map[string]string)
	for _, header := range headers {
		for _, directive := range strings.Split(header, ",") {
			directive = strings.TrimSpace(directive)
			if directive == "" {
				continue
			}
			name, arg, _ := strings.Cut(directive, "=")
			// §  [...] to be compared case-insensitively [...]
			name = strings.ToLower(strings.TrimSpace(name))
			if _, seen := m[name]; seen {
				continue
			}
			m[name] = strings.Trim(strings.TrimSpace(arg), "\"")
		}
	}
	return CacheControl{m}
}

// MaxAge returns the max-age directive in seconds, and whether it was present
// with a valid delta-seconds argument.
func (c CacheControl) MaxAge() (int64, bool) {
	return c.deltaSeconds("max-age")
}

// §  1.2.2.  Delta Seconds
// §
// §      delta-seconds  = 1*DIGIT
// §
// §  If a cache receives a delta-seconds value greater than the greatest
// §  integer it can represent [...] the cache MUST consider the value to be
// §  2147483648 (2^31) or the greatest positive integer it can conveniently represent.
func (c CacheControl) deltaSeconds(directive string) (int64, bool) {
	val, ok := c.Get(directive)
	if !ok || val == "" {
		return 0, false
	}
	for _, r := range val {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	seconds, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// only overflow is left at this point
		return 1 << 31, true
	}
	return seconds, true
}

var maxAgePattern = regexp.MustCompile(`(?i)\bmax-age="?\d+"?`)

// ReplaceMaxAge replaces the first max-age directive in a raw Cache-Control value,
// leaving every other directive as it was.
func ReplaceMaxAge(cacheControl string, seconds int64) string {
	loc := maxAgePattern.FindStringIndex(cacheControl)
	if loc == nil {
		return cacheControl
	}
	return cacheControl[:loc[0]] + "max-age=" + strconv.FormatInt(seconds, 10) + cacheControl[loc[1]:]
}
