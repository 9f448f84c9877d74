// Package api exposes the booking core to the app shell as a local JSON API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"shopvisit/internal/availability"
	"shopvisit/internal/backend"
	"shopvisit/internal/booking"
	"shopvisit/internal/localcart"
	"shopvisit/internal/merge"
	"shopvisit/internal/model"
	"shopvisit/internal/pricing"
	"shopvisit/internal/session"
)

// Bookings is the booking lifecycle as used by the handlers.
type Bookings interface {
	Check(ctx context.Context, slot model.CandidateSlot) (availability.Result, error)
	Enquire(ctx context.Context, id *model.Identity, slot model.CandidateSlot, opts ...booking.EnquireOption) (*booking.Booking, error)
	Preview(ctx context.Context, catalogID string) (*booking.Preview, error)
	Checkout(ctx context.Context, id *model.Identity, b *booking.Booking, method model.PaymentMethod) (*model.Order, error)
	TogglePayment(ctx context.Context, id *model.Identity, orderID string) (*model.Order, error)
}

// Session is the auth state container.
type Session interface {
	Current() *model.Identity
	Login(ctx context.Context, id model.Identity) (*merge.Report, error)
	Refresh(token string) error
	Logout()
}

// OrderLister lists the orders of a vendor.
type OrderLister interface {
	ListVendorOrders(ctx context.Context, token, vendorID string) ([]model.Order, error)
}

// Server serves the local API.
type Server struct {
	bookings  Bookings
	session   Session
	cart      *localcart.Cart
	inquiries *localcart.Cart
	orders    OrderLister
	logger    *zerolog.Logger
	server    *http.Server
}

// NewServer wires the handlers. addr is the listen address, e.g. ":8080".
func NewServer(
	addr string,
	bookings Bookings,
	session Session,
	cart, inquiries *localcart.Cart,
	orders OrderLister,
	logger *zerolog.Logger,
) *Server {
	s := &Server{
		bookings:  bookings,
		session:   session,
		cart:      cart,
		inquiries: inquiries,
		orders:    orders,
		logger:    logger,
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/availability", s.handleAvailability).Methods(http.MethodPost)
	router.HandleFunc("/api/cart", s.handleListCart).Methods(http.MethodGet)
	router.HandleFunc("/api/cart", s.handleAddCart).Methods(http.MethodPost)
	router.HandleFunc("/api/cart/{catalog_id}", s.handleRemoveCart).Methods(http.MethodDelete)
	router.HandleFunc("/api/inquiries", s.handleListInquiries).Methods(http.MethodGet)
	router.HandleFunc("/api/inquiries", s.handleInquiry).Methods(http.MethodPost)
	router.HandleFunc("/api/session", s.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/api/session", s.handleRefresh).Methods(http.MethodPut)
	router.HandleFunc("/api/session", s.handleLogout).Methods(http.MethodDelete)
	router.HandleFunc("/api/bookings", s.handleBook).Methods(http.MethodPost)
	router.HandleFunc("/api/catalogs/{id}/preview", s.handlePreview).Methods(http.MethodGet)
	router.HandleFunc("/api/orders", s.handleCheckout).Methods(http.MethodPost)
	router.HandleFunc("/api/orders/{id}/payment-status", s.handleTogglePayment).Methods(http.MethodPost)
	router.HandleFunc("/api/vendors/{id}/orders.xlsx", s.handleExportOrders).Methods(http.MethodGet)
	router.Use(s.requestLogger)
	return router
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("api server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error        string               `json:"error"`
	Code         string               `json:"code,omitempty"`
	Availability *availability.Result `json:"availability,omitempty"`
	Message      string               `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeFailure maps err to a status code and writes the error envelope.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	body := errorBody{Error: err.Error(), Code: code}

	var rejected *availability.SlotRejectedError
	if errors.As(err, &rejected) {
		res := rejected.Result
		body.Availability = &res
		body.Message = res.Message()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, body)
}

// statusFor maps domain errors to HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	var httpErr *backend.HTTPError
	switch {
	case errors.Is(err, model.ErrInvalidSlot), errors.Is(err, localcart.ErrMissingCatalog):
		return http.StatusBadRequest, "INVALID_SLOT"
	case errors.Is(err, availability.ErrSlotRejected):
		return http.StatusConflict, "SLOT_REJECTED"
	case errors.Is(err, booking.ErrAuthRequired), errors.Is(err, session.ErrNotLoggedIn):
		return http.StatusUnauthorized, "AUTH_REQUIRED"
	case errors.Is(err, booking.ErrUnsupportedPaymentMethod):
		return http.StatusNotImplemented, booking.CodeNotImplemented
	case errors.Is(err, booking.ErrInFlight):
		return http.StatusTooManyRequests, "IN_FLIGHT"
	case errors.Is(err, booking.ErrInvalidTransition), errors.Is(err, booking.ErrMissingEnquiry),
		errors.Is(err, pricing.ErrNegativePrice), errors.Is(err, pricing.ErrUnknownFeeType):
		return http.StatusUnprocessableEntity, "INVALID_BOOKING"
	case errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized:
		return http.StatusUnauthorized, "AUTH_REQUIRED"
	case errors.Is(err, booking.ErrSubmissionFailed), errors.As(err, &httpErr):
		return http.StatusBadGateway, "SUBMISSION_FAILED"
	default:
		return http.StatusInternalServerError, ""
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
