package telemetry

import (
	"fmt"
)

// API is the single channel the scraper pipeline uses for logs and counts.
// Components take it as a constructor argument so tests can swap in a
// Recorder and assert on what was reported.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a failure that needs attention, such as a handshake
	// that gave up or a page that could not be fetched.
	//
	// `id` names the component and operation, never the detail. A result page
	// that failed to download inside PageExtractor.ExtractPage is reported as
	// `extract.page` with the page number and error as params.
	//
	// ids are lowercase, words inside an operation are joined with dashes and
	// the component is separated from the operation by a dot
	// (`catalog.discover-cities`). The package prefix comes from ScopedAPI.
	ReportBroken(id string, params ...any)

	// ReportWarning reports a degraded path the run recovered from, like a
	// fallback city list or a guessed record count.
	ReportWarning(id string, params ...any)

	// ReportDebug reports detail that is only printed under --verbose.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a point-in-time count (rows on a page, pages that
	// failed). Counts are samples, they should not be summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id it forwards with a namespace, as in
// `jgxx.extract: extract.page`.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}
