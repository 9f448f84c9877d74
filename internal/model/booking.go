package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// ErrInvalidSlot is returned for a candidate slot whose date or time cannot be parsed.
var ErrInvalidSlot = errors.New("invalid slot")

// CandidateSlot is a visit slot picked on a catalog page.
type CandidateSlot struct {
	CatalogID string `json:"catalog_id"`
	ShopID    string `json:"shop_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	Time      string `json:"time"` // HH:MM
	Message   string `json:"message,omitempty"`
}

// Parse returns the slot date (midnight in loc) and time of day.
func (s CandidateSlot) Parse(loc *time.Location) (time.Time, ClockTime, error) {
	if loc == nil {
		loc = time.Local
	}
	if strings.TrimSpace(s.CatalogID) == "" {
		return time.Time{}, 0, fmt.Errorf("%w: catalog_id is required", ErrInvalidSlot)
	}
	date, err := time.ParseInLocation(DateLayout, s.Date, loc)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: date %q, expected YYYY-MM-DD", ErrInvalidSlot, s.Date)
	}
	clock, err := ParseClock(s.Time)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	}
	return date, clock, nil
}

// LocalCartEntry is a device-local selection waiting for login.
type LocalCartEntry struct {
	CatalogID string        `json:"catalog_id"`
	Slot      CandidateSlot `json:"slot"`
	AddedAt   time.Time     `json:"added_at"`
}

type Enquiry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CatalogID string    `json:"catalog_id"`
	VendorID  string    `json:"vendor_id"`
	VisitDate string    `json:"visit_date"`
	VisitTime string    `json:"visit_time"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentMethod of an order. Only PaymentPayOnVisit is accepted.
type PaymentMethod string

const (
	PaymentPayOnVisit PaymentMethod = "pay_on_visit"
	PaymentCard       PaymentMethod = "card"
	PaymentWallet     PaymentMethod = "wallet"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "Unpaid"
	PaymentPaid   PaymentStatus = "Paid"
)

// Toggled returns the opposite payment status.
func (s PaymentStatus) Toggled() PaymentStatus {
	if s == PaymentPaid {
		return PaymentUnpaid
	}
	return PaymentPaid
}

// Order is a snapshot of an enquiry at checkout time.
type Order struct {
	ID            string          `json:"id"`
	EnquiryID     string          `json:"enquiry_id"`
	UserID        string          `json:"user_id,omitempty"`
	CatalogID     string          `json:"catalog_id"`
	VendorID      string          `json:"vendor_id"`
	VisitDate     string          `json:"visit_date"`
	VisitTime     string          `json:"visit_time"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	OrderNumber   string          `json:"order_number"`
	CreatedAt     time.Time       `json:"created_at"`
}

// FeeType is the platform fee type of a catalog item.
type FeeType string

const (
	FeePercentage FeeType = "percentage"
	FeeFlat       FeeType = "flat"
)

// CatalogInfo is what the booking core needs to know about a catalog item.
type CatalogInfo struct {
	ID              string          `json:"id"`
	ShopID          string          `json:"shop_id"`
	VendorID        string          `json:"vendor_id"`
	Name            string          `json:"name,omitempty"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	PlatformFeeType FeeType         `json:"platform_fee_type"`
}

type Pricing struct {
	SalePrice       decimal.Decimal `json:"sale_price"`
	PlatformFeeType FeeType         `json:"platform_fee_type"`
}

func (c CatalogInfo) Pricing() Pricing {
	return Pricing{SalePrice: c.SalePrice, PlatformFeeType: c.PlatformFeeType}
}

// Identity is the authenticated user as issued by the auth collaborator.
type Identity struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// Valid reports whether the identity can be used for authenticated calls.
func (i *Identity) Valid() bool {
	return i != nil && i.UserID != "" && i.Token != ""
}
