package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"shopvisit/internal/availability"
	"shopvisit/internal/backend"
	"shopvisit/internal/events"
	"shopvisit/internal/metrics"
	"shopvisit/internal/model"
	"shopvisit/internal/pricing"
	"shopvisit/internal/schedule"
)

// Backend is the slice of the marketplace API used by the lifecycle.
type Backend interface {
	GetCatalog(ctx context.Context, catalogID string) (*model.CatalogInfo, error)
	AddCartItem(ctx context.Context, token string, req backend.CartItemRequest) (*backend.CartItem, error)
	SubmitEnquiry(ctx context.Context, token string, req backend.EnquiryRequest) (*model.Enquiry, error)
	CreateOrder(ctx context.Context, token string, req backend.OrderRequest) (*model.Order, error)
	SetPaymentStatus(ctx context.Context, token, orderID string) (*model.Order, error)
}

// ScheduleLoader returns a shop schedule and never fails. Refresh skips any cache.
type ScheduleLoader interface {
	Load(ctx context.Context, shopID string) schedule.Schedule
	Refresh(ctx context.Context, shopID string) schedule.Schedule
}

// Publisher publishes domain events.
type Publisher interface {
	PublishJSON(eventType string, payload any) error
}

// Source labels where an enquiry came from.
const (
	SourceDirect = "direct"
	SourceMerge  = "merge"
)

type enquireOptions struct {
	source     string
	remoteCart bool
	fresh      bool
}

// EnquireOption tunes Enquire.
type EnquireOption func(*enquireOptions)

// WithSource labels the enquiry for metrics and events.
func WithSource(source string) EnquireOption {
	return func(o *enquireOptions) { o.source = source }
}

// WithRemoteCart also adds the item to the authenticated cart once the enquiry
// has been accepted.
func WithRemoteCart() EnquireOption {
	return func(o *enquireOptions) { o.remoteCart = true }
}

// WithFreshSchedule re-reads the shop hours instead of using a cached copy.
func WithFreshSchedule() EnquireOption {
	return func(o *enquireOptions) { o.fresh = true }
}

// Preview is the price shown before checkout.
type Preview struct {
	CatalogID       string          `json:"catalog_id"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	FinalPrice      decimal.Decimal `json:"final_price"`
	PlatformFeeType model.FeeType   `json:"platform_fee_type"`
}

// Service implements the booking lifecycle against the backend.
type Service struct {
	backend   Backend
	schedules ScheduleLoader
	evaluator *availability.Evaluator
	fsm       *FSM
	bus       Publisher
	loc       *time.Location
	guard     *inflight
	logger    *zerolog.Logger
}

// NewService creates the lifecycle service. bus may be nil.
func NewService(
	api Backend,
	schedules ScheduleLoader,
	evaluator *availability.Evaluator,
	bus Publisher,
	loc *time.Location,
	logger *zerolog.Logger,
) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		backend:   api,
		schedules: schedules,
		evaluator: evaluator,
		fsm:       NewFSM(),
		bus:       bus,
		loc:       loc,
		guard:     newInflight(),
		logger:    logger,
	}
}

// Check evaluates a slot against the current schedule of its shop.
func (s *Service) Check(ctx context.Context, slot model.CandidateSlot) (availability.Result, error) {
	candidate, err := availability.CandidateFromSlot(slot, s.loc)
	if err != nil {
		return availability.Result{}, err
	}
	if slot.ShopID == "" {
		info, err := s.backend.GetCatalog(ctx, slot.CatalogID)
		if err != nil {
			return availability.Result{}, fmt.Errorf("%w: load catalog %s: %w", ErrSubmissionFailed, slot.CatalogID, err)
		}
		slot.ShopID = info.ShopID
	}
	return s.evaluate(ctx, slot.ShopID, candidate, false), nil
}

func (s *Service) evaluate(ctx context.Context, shopID string, c availability.Candidate, fresh bool) availability.Result {
	var sched schedule.Schedule
	if fresh {
		sched = s.schedules.Refresh(ctx, shopID)
	} else {
		sched = s.schedules.Load(ctx, shopID)
	}
	res := s.evaluator.Evaluate(sched.Entries, c)
	metrics.IncAvailabilityCheck(string(res.Status))
	return res
}

// Enquire takes a slot from SELECTING to ENQUIRED. It re-checks availability and
// returns *availability.SlotRejectedError when the shop is not open.
func (s *Service) Enquire(ctx context.Context, id *model.Identity, slot model.CandidateSlot, opts ...EnquireOption) (*Booking, error) {
	o := enquireOptions{source: SourceDirect}
	for _, opt := range opts {
		opt(&o)
	}

	if !id.Valid() {
		return nil, ErrAuthRequired
	}
	candidate, err := availability.CandidateFromSlot(slot, s.loc)
	if err != nil {
		return nil, err
	}

	release, ok := s.guard.acquire("enquire:" + id.UserID + ":" + slot.CatalogID)
	if !ok {
		return nil, ErrInFlight
	}
	defer release()

	info, err := s.backend.GetCatalog(ctx, slot.CatalogID)
	if err != nil {
		return nil, fmt.Errorf("%w: load catalog %s: %w", ErrSubmissionFailed, slot.CatalogID, err)
	}
	if info.ShopID != "" {
		slot.ShopID = info.ShopID
	}

	b := &Booking{State: StateSelecting, Slot: slot}
	b.Availability = s.evaluate(ctx, slot.ShopID, candidate, o.fresh)
	if err := b.Availability.Err(); err != nil {
		return b, err
	}

	enquiry, err := s.backend.SubmitEnquiry(ctx, id.Token, backend.EnquiryRequest{
		UserID:    id.UserID,
		CatalogID: slot.CatalogID,
		VendorID:  info.VendorID,
		VisitDate: slot.Date,
		VisitTime: slot.Time,
		Message:   slot.Message,
	})
	if err != nil {
		return b, fmt.Errorf("%w: submit enquiry %s: %w", ErrSubmissionFailed, slot.CatalogID, err)
	}

	s.fsm.Transition(b, StateEnquired)
	b.Enquiry = enquiry
	if o.remoteCart {
		// The enquiry stands on its own; a missing remote cart item only costs a re-add.
		_, err := s.backend.AddCartItem(ctx, id.Token, backend.CartItemRequest{
			UserID:    id.UserID,
			CatalogID: slot.CatalogID,
			VisitDate: slot.Date,
			VisitTime: slot.Time,
		})
		if err != nil {
			s.logger.Warn().Err(err).
				Str("enquiry_id", enquiry.ID).
				Str("catalog_id", slot.CatalogID).
				Msg("add remote cart item failed")
		}
	}
	metrics.IncEnquiryCreated(o.source)
	s.publish(events.EnquiryCreated, map[string]string{
		"enquiry_id": enquiry.ID,
		"user_id":    id.UserID,
		"catalog_id": slot.CatalogID,
		"source":     o.source,
	})
	s.logger.Info().
		Str("enquiry_id", enquiry.ID).
		Str("catalog_id", slot.CatalogID).
		Str("source", o.source).
		Msg("enquiry created")
	return b, nil
}

// Preview computes the price shown before checkout.
func (s *Service) Preview(ctx context.Context, catalogID string) (*Preview, error) {
	info, err := s.backend.GetCatalog(ctx, catalogID)
	if err != nil {
		return nil, fmt.Errorf("%w: load catalog %s: %w", ErrSubmissionFailed, catalogID, err)
	}
	final, err := pricing.FinalPrice(info.Pricing())
	if err != nil {
		return nil, err
	}
	return &Preview{
		CatalogID:       catalogID,
		SalePrice:       info.SalePrice,
		FinalPrice:      final,
		PlatformFeeType: info.PlatformFeeType,
	}, nil
}

// Checkout takes an ENQUIRED booking to ORDERED with payment UNPAID. On failure the
// booking is left as it was and no order is returned.
func (s *Service) Checkout(ctx context.Context, id *model.Identity, b *Booking, method model.PaymentMethod) (*model.Order, error) {
	if !id.Valid() {
		return nil, ErrAuthRequired
	}
	if b == nil || b.Enquiry == nil || b.Enquiry.ID == "" {
		return nil, ErrMissingEnquiry
	}
	if b.Enquiry.UserID != "" && b.Enquiry.UserID != id.UserID {
		return nil, fmt.Errorf("%w: enquiry %s belongs to another user", ErrMissingEnquiry, b.Enquiry.ID)
	}
	if !s.fsm.CanTransition(b.State, StateOrdered) || b.State == StateOrdered {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.State, StateOrdered)
	}
	if method == "" {
		method = model.PaymentPayOnVisit
	}
	if method != model.PaymentPayOnVisit {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPaymentMethod, method)
	}

	release, ok := s.guard.acquire("checkout:" + b.Enquiry.ID)
	if !ok {
		return nil, ErrInFlight
	}
	defer release()

	enquiry := b.Enquiry
	info, err := s.backend.GetCatalog(ctx, enquiry.CatalogID)
	if err != nil {
		return nil, fmt.Errorf("%w: load catalog %s: %w", ErrSubmissionFailed, enquiry.CatalogID, err)
	}
	final, err := pricing.FinalPrice(info.Pricing())
	if err != nil {
		return nil, err
	}

	vendorID := enquiry.VendorID
	if vendorID == "" {
		vendorID = info.VendorID
	}
	order, err := s.backend.CreateOrder(ctx, id.Token, backend.OrderRequest{
		EnquiryID:     enquiry.ID,
		UserID:        id.UserID,
		CatalogID:     enquiry.CatalogID,
		VendorID:      vendorID,
		VisitDate:     enquiry.VisitDate,
		VisitTime:     enquiry.VisitTime,
		SalePrice:     info.SalePrice,
		FinalPrice:    final,
		PaymentMethod: method,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create order for enquiry %s: %w", ErrSubmissionFailed, enquiry.ID, err)
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = model.PaymentUnpaid
	}

	s.fsm.Transition(b, StateOrdered)
	b.Order = order
	metrics.IncOrderCreated()
	s.publish(events.OrderCreated, map[string]string{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"enquiry_id":   enquiry.ID,
		"final_price":  final.StringFixed(2),
	})
	s.logger.Info().
		Str("order_id", order.ID).
		Str("enquiry_id", enquiry.ID).
		Str("final_price", final.StringFixed(2)).
		Msg("order created")
	return order, nil
}

// TogglePayment flips an order between Unpaid and Paid. It is the vendor-side
// action; toggling twice restores the original status.
func (s *Service) TogglePayment(ctx context.Context, id *model.Identity, orderID string) (*model.Order, error) {
	if !id.Valid() {
		return nil, ErrAuthRequired
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrInvalidTransition)
	}

	release, ok := s.guard.acquire("payment:" + orderID)
	if !ok {
		return nil, ErrInFlight
	}
	defer release()

	order, err := s.backend.SetPaymentStatus(ctx, id.Token, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: toggle payment of order %s: %w", ErrSubmissionFailed, orderID, err)
	}

	metrics.IncPaymentToggle(string(order.PaymentStatus))
	s.publish(events.OrderPaymentToggled, map[string]string{
		"order_id":       order.ID,
		"payment_status": string(order.PaymentStatus),
	})
	return order, nil
}

func (s *Service) publish(eventType string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}
