package scraper

import (
	"encoding/json"
	"maps"
)

// Status is the terminal state of a single identity search.
type Status string

const (
	// StatusFoundClean means records were found and none disqualify the subject.
	StatusFoundClean Status = "FOUND_CLEAN"
	// StatusDisqualified means a matching record invalidates the subject.
	StatusDisqualified Status = "DISQUALIFIED"
	// StatusNotFound is a confirmed negative.
	StatusNotFound Status = "NOT_FOUND"
	// StatusTimeout means the results page never reached a recognizable state.
	StatusTimeout Status = "TIMEOUT"
	// StatusError captures any unexpected failure during the search.
	StatusError Status = "ERROR"
)

// Statuses lists every status in reporting order.
var Statuses = []Status{StatusFoundClean, StatusDisqualified, StatusNotFound, StatusTimeout, StatusError}

// Result is the status-specific part of a SearchOutcome. The zero value is not
// a valid result; use one of the constructors.
type Result struct {
	status Status
	count  int
	fields map[string]string
	detail string
}

// Clean reports count matching records, none of them disqualifying.
func Clean(count int, fields map[string]string) Result {
	return Result{status: StatusFoundClean, count: count, fields: maps.Clone(fields)}
}

// Disqualified reports a disqualifying record among count results.
func Disqualified(count int, fields map[string]string) Result {
	return Result{status: StatusDisqualified, count: count, fields: maps.Clone(fields)}
}

// NotFound reports a confirmed empty result.
func NotFound() Result {
	return Result{status: StatusNotFound}
}

// TimedOut reports that readiness polling was exhausted.
func TimedOut() Result {
	return Result{status: StatusTimeout}
}

// Failed records an unexpected error.
func Failed(err error) Result {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return Result{status: StatusError, detail: detail}
}

// Status returns the terminal status.
func (r Result) Status() Status { return r.status }

// Count returns the number of result records seen by the search.
func (r Result) Count() int { return r.count }

// Disqualifying reports whether this result disqualifies its work item.
func (r Result) Disqualifying() bool { return r.status == StatusDisqualified }

// ErrorDetail returns the captured error message for StatusError results.
func (r Result) ErrorDetail() string { return r.detail }

// Valid reports whether the result was built by a constructor.
func (r Result) Valid() bool { return r.status != "" }

// Field returns a single extracted field.
func (r Result) Field(key string) string { return r.fields[key] }

// Fields returns a copy of the extracted fields.
func (r Result) Fields() map[string]string {
	if len(r.fields) == 0 {
		return map[string]string{}
	}
	return maps.Clone(r.fields)
}

type resultJSON struct {
	Status        Status            `json:"status"`
	ResultCount   int               `json:"result_count"`
	Disqualifying bool              `json:"disqualifying"`
	Fields        map[string]string `json:"fields,omitempty"`
	ErrorDetail   string            `json:"error_detail,omitempty"`
}

// MarshalJSON renders the result for sinks and the status API.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Status:        r.status,
		ResultCount:   r.count,
		Disqualifying: r.Disqualifying(),
		Fields:        r.fields,
		ErrorDetail:   r.detail,
	})
}

// AnyDisqualified reports whether any result disqualifies the work item.
func AnyDisqualified(results []Result) bool {
	for _, r := range results {
		if r.Disqualifying() {
			return true
		}
	}
	return false
}
