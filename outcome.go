package transformcache

import "net/http"

// OutcomeHeader is the response header carrying the outcome in debug mode.
const OutcomeHeader = "X-Transform-Cache"

// Outcome tells how a processed document request was answered.
type Outcome string

const (
	// The document was fetched from the origin and transformed.
	OutcomeMiss Outcome = "miss"

	// The stored document was fresh and served without contacting the origin.
	OutcomeHit Outcome = "hit"

	// The origin confirmed that the stored document is current,
	// and the stored document was served.
	OutcomeRevalidatedHit Outcome = "revalidated-hit"

	// The client's own conditional request succeeded at the origin,
	// and the origin's 304 was passed on.
	OutcomePassThroughHit Outcome = "pass-through-hit"
)

// tag adds the outcome header if debugging is enabled.
func (t *TransformCache) tag(h http.Header, outcome Outcome) {
	if t.debug {
		h.Set(OutcomeHeader, string(outcome))
	}
}

func (t *TransformCache) logResponse(r *http.Request, outcome Outcome, status int) {
	t.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("outcome", string(outcome)).
		Int("status", status).
		Msg("Sending response to client")
}
