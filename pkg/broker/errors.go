package broker

import "errors"

var (
	// ErrConnect indicates the broker was unreachable or rejected the credentials.
	ErrConnect = &kindError{kind: "connect", message: "connect failed"}

	// ErrChannelOpen indicates the connection was up but the channel could not be opened.
	ErrChannelOpen = &kindError{kind: "channel_open", message: "channel open failed"}

	// ErrDeclare indicates the exchange declaration was refused.
	ErrDeclare = &kindError{kind: "declare", message: "exchange declare failed"}

	// ErrPublish indicates the message could not be handed to the broker.
	ErrPublish = &kindError{kind: "publish", message: "publish failed"}

	// ErrNotConnected indicates there is no connection to publish on.
	ErrNotConnected = &kindError{kind: "not_connected", message: "not connected"}
)

// kindError classifies broker failures. The kind doubles as a metrics label.
type kindError struct {
	kind    string
	message string
}

func (e *kindError) Error() string {
	return e.message
}

func (e *kindError) Kind() string {
	return e.kind
}

func (e *kindError) Is(target error) bool {
	if t, ok := target.(*kindError); ok {
		return e.kind == t.kind
	}
	return false
}

// Kind returns the failure kind of err, "unknown" for unclassified errors and "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var ke *kindError
	if errors.As(err, &ke) {
		return ke.Kind()
	}

	return "unknown"
}
