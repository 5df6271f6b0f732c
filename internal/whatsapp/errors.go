package whatsapp

import "fmt"

// PayloadError is a malformed inbound webhook body.
type PayloadError struct {
	Err error
}

func (e *PayloadError) Error() string { return "invalid webhook payload: " + e.Err.Error() }

func (e *PayloadError) Unwrap() error { return e.Err }

// DeliveryError is a non-success answer from the messaging provider.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("twilio api error: status=%d body=%s", e.StatusCode, e.Body)
}
