// Package booking drives a visit booking from enquiry to order and payment status.
package booking

import (
	"shopvisit/internal/availability"
	"shopvisit/internal/model"
)

// State is the lifecycle state of a booking.
type State string

const (
	StateSelecting State = "SELECTING"
	StateEnquired  State = "ENQUIRED"
	// StateOrdered has the payment sub-state on Order.PaymentStatus (UNPAID first).
	StateOrdered State = "ORDERED"
)

// Booking is one booking moving through the lifecycle.
type Booking struct {
	State        State               `json:"state"`
	Slot         model.CandidateSlot `json:"slot"`
	Availability availability.Result `json:"availability"`
	Enquiry      *model.Enquiry      `json:"enquiry,omitempty"`
	Order        *model.Order        `json:"order,omitempty"`
}

// FromEnquiry restores an ENQUIRED booking from an existing enquiry.
func FromEnquiry(e model.Enquiry) *Booking {
	return &Booking{
		State: StateEnquired,
		Slot: model.CandidateSlot{
			CatalogID: e.CatalogID,
			Date:      e.VisitDate,
			Time:      e.VisitTime,
			Message:   e.Message,
		},
		Enquiry: &e,
	}
}

// PaymentStatus returns the payment sub-state, empty before ORDERED.
func (b *Booking) PaymentStatus() model.PaymentStatus {
	if b.State != StateOrdered || b.Order == nil {
		return ""
	}
	return b.Order.PaymentStatus
}

// FSM manages state transitions of bookings.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates a new FSM with predefined transitions.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateSelecting: {StateEnquired},
			StateEnquired:  {StateOrdered},
			// Payment toggles stay in ORDERED.
			StateOrdered: {StateOrdered},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	allowed, ok := f.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition updates the booking state if the transition is allowed.
func (f *FSM) Transition(b *Booking, to State) bool {
	if b == nil || !f.CanTransition(b.State, to) {
		return false
	}
	b.State = to
	return true
}
