// Package ctlproto implements the control-plane wire protocol of spec.md
// §4.4: the JSON request/response and event payloads carried between a
// control client and hosts over internal/bus, plus the host-side subject
// dispatcher (the "tagged-variant envelope... handler dispatch keyed on
// the subject token" design note of §9).
package ctlproto

// CtlResponse is the envelope every unicast reply is wrapped in
// (spec.md §4.4). Success=false with a non-empty Message denotes a
// business-level failure; a transport failure (timeout, no responder) is
// never represented this way — it surfaces as an error from the bus layer
// instead (spec.md §7).
type CtlResponse[T any] struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response *T     `json:"response,omitempty"`
}

// Ok builds a successful CtlResponse wrapping resp.
func Ok[T any](resp T) CtlResponse[T] {
	return CtlResponse[T]{Success: true, Response: &resp}
}

// OkVoid builds a successful CtlResponse with no payload, for operations
// whose output is simply acceptance (e.g. early-acked scale/update/start).
func OkVoid() CtlResponse[struct{}] {
	return CtlResponse[struct{}]{Success: true}
}

// Fail builds a business-failure CtlResponse with the given message.
func Fail[T any](message string) CtlResponse[T] {
	return CtlResponse[T]{Success: false, Message: message}
}
