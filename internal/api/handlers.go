package api

import (
	"mime"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"shopvisit/internal/availability"
	"shopvisit/internal/booking"
	"shopvisit/internal/merge"
	"shopvisit/internal/metrics"
	"shopvisit/internal/model"
	"shopvisit/internal/report"
)

// AvailabilityResponse is the response for POST /api/availability.
type AvailabilityResponse struct {
	availability.Result
	Message string `json:"message"`
}

// BookResponse is the response for POST /api/bookings and POST /api/inquiries.
// StoredLocally is set when the selection was kept on the device until login.
type BookResponse struct {
	StoredLocally bool                  `json:"stored_locally"`
	Entry         *model.LocalCartEntry `json:"entry,omitempty"`
	Booking       *booking.Booking      `json:"booking,omitempty"`
}

// CheckoutRequest is the request body for POST /api/orders.
type CheckoutRequest struct {
	Enquiry       model.Enquiry       `json:"enquiry"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
}

// handleAvailability evaluates a slot without booking it.
// POST /api/availability
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	var slot model.CandidateSlot
	if err := decodeBody(r, &slot); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.bookings.Check(r.Context(), slot)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{Result: res, Message: res.Message()})
}

// GET /api/cart
func (s *Server) handleListCart(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cart_list")
	entries, err := s.cart.List(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleAddCart stores a selection on the device without checking availability;
// the merge re-checks it after login.
// POST /api/cart
func (s *Server) handleAddCart(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cart_add")

	var slot model.CandidateSlot
	if err := decodeBody(r, &slot); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// Only the format is checked; the shop zone applies when the slot is evaluated.
	if _, _, err := slot.Parse(time.UTC); err != nil {
		s.writeFailure(w, err)
		return
	}
	entry, err := s.cart.Add(r.Context(), model.LocalCartEntry{Slot: slot})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// DELETE /api/cart/{catalog_id}
func (s *Server) handleRemoveCart(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cart_remove")
	if err := s.cart.Remove(r.Context(), mux.Vars(r)["catalog_id"]); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/inquiries
func (s *Server) handleListInquiries(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("inquiries_list")
	entries, err := s.inquiries.List(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleInquiry submits an enquiry, or keeps it as a pending inquiry while logged out.
// POST /api/inquiries
func (s *Server) handleInquiry(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("inquiry")
	s.book(w, r, false)
}

// handleBook re-checks the slot and creates an enquiry. Logged out, an open slot
// goes to the local cart instead.
// POST /api/bookings
func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("book")
	s.book(w, r, true)
}

func (s *Server) book(w http.ResponseWriter, r *http.Request, toCart bool) {
	var slot model.CandidateSlot
	if err := decodeBody(r, &slot); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id := s.session.Current()
	if id == nil {
		s.storeLocally(w, r, slot, toCart)
		return
	}

	var opts []booking.EnquireOption
	if toCart {
		opts = append(opts, booking.WithRemoteCart())
	}
	b, err := s.bookings.Enquire(r.Context(), id, slot, opts...)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, BookResponse{Booking: b})
}

func (s *Server) storeLocally(w http.ResponseWriter, r *http.Request, slot model.CandidateSlot, toCart bool) {
	res, err := s.bookings.Check(r.Context(), slot)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if err := res.Err(); err != nil {
		s.writeFailure(w, err)
		return
	}

	store := s.inquiries
	if toCart {
		store = s.cart
	}
	entry, err := store.Add(r.Context(), model.LocalCartEntry{Slot: slot})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, BookResponse{StoredLocally: true, Entry: &entry})
}

// handleLogin stores the identity and returns the merge report.
// POST /api/session
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("login")

	var id model.Identity
	if err := decodeBody(r, &id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !id.Valid() {
		writeError(w, http.StatusBadRequest, "user_id and token are required")
		return
	}
	rep, err := s.session.Login(r.Context(), id)
	if err != nil {
		if rep == nil {
			s.writeFailure(w, err)
			return
		}
		// Entries were submitted but the local store could not be settled.
		s.logger.Error().Err(err).Str("user_id", id.UserID).Msg("merge settle failed")
	}
	if rep == nil {
		rep = &merge.Report{Merged: []merge.Outcome{}, Failed: []merge.Failure{}}
	}
	writeJSON(w, http.StatusOK, rep)
}

// DELETE /api/session
// RefreshRequest is the body of PUT /api/session.
type RefreshRequest struct {
	Token string `json:"token"`
}

// handleRefresh swaps the session token without merging again.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_refresh")

	var req RefreshRequest
	if err := decodeBody(r, &req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	if err := s.session.Refresh(req.Token); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	metrics.IncHTTP("logout")
	s.session.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/catalogs/{id}/preview
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("preview")
	p, err := s.bookings.Preview(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleCheckout turns an enquiry into an order.
// POST /api/orders
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("checkout")

	var req CheckoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	b := booking.FromEnquiry(req.Enquiry)
	order, err := s.bookings.Checkout(r.Context(), s.session.Current(), b, req.PaymentMethod)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// POST /api/orders/{id}/payment-status
func (s *Server) handleTogglePayment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("payment_toggle")
	order, err := s.bookings.TogglePayment(r.Context(), s.session.Current(), mux.Vars(r)["id"])
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// GET /api/vendors/{id}/orders.xlsx
func (s *Server) handleExportOrders(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("orders_export")

	id := s.session.Current()
	if !id.Valid() {
		s.writeFailure(w, booking.ErrAuthRequired)
		return
	}
	vendorID := mux.Vars(r)["id"]
	orders, err := s.orders.ListVendorOrders(r.Context(), id.Token, vendorID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": "orders-" + vendorID + ".xlsx"}))
	if err := report.WriteOrders(w, orders); err != nil {
		s.logger.Error().Err(err).Str("vendor_id", vendorID).Msg("write orders export failed")
	}
}
