package appointment

import (
	"fmt"
	"strconv"
)

// NetworkError is a transport failure (DNS, timeout, connection refused,
// truncated body).
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("appointment: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means the response body was not the expected JSON envelope.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("appointment: parse response from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// APIError is a well-formed refusal from the upstream service: a non-2xx
// status or an envelope with success=false.
type APIError struct {
	URL     string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("appointment: %s returned status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("appointment: %s returned status %d: %s", e.URL, e.Status, e.Message)
}

// MissingFieldError names a required nested field, as a dotted path, that
// was absent, null or empty in an upstream record.
type MissingFieldError struct {
	Path string
}

func (e *MissingFieldError) Error() string {
	return "missing field " + strconv.Quote(e.Path)
}

// TimeParseError is an unparseable start_time/end_time.
type TimeParseError struct {
	Field string
	Value string
	Err   error
}

func (e *TimeParseError) Error() string {
	return fmt.Sprintf("cannot parse %s %s: %v", e.Field, e.Value, e.Err)
}

func (e *TimeParseError) Unwrap() error { return e.Err }

// TimeRangeError is an appointment that ends before it starts.
type TimeRangeError struct {
	Start string
	End   string
}

func (e *TimeRangeError) Error() string {
	return fmt.Sprintf("end_time %s is before start_time %s", e.End, e.Start)
}

// DuplicateIDError is a second record with an id already seen in the batch.
type DuplicateIDError struct {
	ID int64
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate appointment id %d", e.ID)
}

// RecordError ties a validation failure to its position in the batch.
// ID is zero when the record's id itself could not be read.
type RecordError struct {
	Index int
	ID    int64
	Err   error
}

func (e *RecordError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("appointment: record %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("appointment: record %d (id %d): %v", e.Index, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
