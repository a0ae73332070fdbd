// Package types holds the JSON envelopes every handler writes.
package types

// SuccessEnvelope wraps a successful response body under "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error shape. Message is sanitized for
// 5xx responses before it gets here.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// PagedEnvelope wraps a listing plus its page metadata.
type PagedEnvelope struct {
	Items any `json:"items"`
	Meta  any `json:"meta"`
}
