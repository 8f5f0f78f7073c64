package routing

import "errors"

var (
	ErrNoResponses   = errors.New("slotrouter: no responses to aggregate")
	ErrSpecialPolicy = errors.New("slotrouter: command needs special response handling")
	ErrUnknownPolicy = errors.New("slotrouter: unknown response policy")
)

// TypeError is returned when a partial reply does not have the shape its
// policy requires. The whole aggregation fails; nothing is salvaged.
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string {
	return "slotrouter: type error: " + e.Message
}
