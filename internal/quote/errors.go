package quote

import "fmt"

// TransportError reports that a quote request could not complete.
type TransportError struct {
	Source string
	Ticker string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: requesting quote for %s: %v", e.Source, e.Ticker, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnexpectedStatusError reports a reachable quote service that answered with
// anything other than 200.
type UnexpectedStatusError struct {
	Source     string
	Ticker     string
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%s: unexpected response status code for %s. Expected 200, received: %d",
		e.Source, e.Ticker, e.StatusCode)
}

// MalformedResponseError reports a response whose shape does not carry the
// expected numeric quote fields.
type MalformedResponseError struct {
	Source string
	Ticker string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed quote for %s: %s: %v", e.Source, e.Ticker, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: malformed quote for %s: %s", e.Source, e.Ticker, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
