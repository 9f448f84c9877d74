package booking

import "errors"

// CodeNotImplemented is reported for features the marketplace does not offer yet.
const CodeNotImplemented = "NOT_IMPLEMENTED"

var (
	ErrAuthRequired             = errors.New("login required")
	ErrSubmissionFailed         = errors.New("submission failed")
	ErrUnsupportedPaymentMethod = errors.New(CodeNotImplemented + ": payment method not supported")
	ErrInFlight                 = errors.New("operation already in progress")
	ErrInvalidTransition        = errors.New("invalid booking transition")
	ErrMissingEnquiry           = errors.New("booking has no enquiry")
)
