package subscription

import (
	"context"
	"errors"
	"time"
)

// ErrUserCancelled is returned by providers when the user dismisses the
// purchase flow. Callers treat it as a deliberate outcome, not a failure.
var ErrUserCancelled = errors.New("purchase cancelled by user")

// Entitlement billing period types reported by the provider.
const (
	PeriodTypeTrial  = "TRIAL"
	PeriodTypeNormal = "NORMAL"
)

// Package type tags reported by the provider.
const (
	PackageTypeMonthly = "MONTHLY"
	PackageTypeAnnual  = "ANNUAL"
)

// Entitlement is a provider-issued record indicating the user currently has
// access to a paid feature set.
type Entitlement struct {
	ProductIdentifier string
	WillRenew         bool
	PeriodType        string
	ExpirationDate    time.Time // zero when the provider reports none
}

// CustomerInfo is the raw entitlement snapshot returned by the provider.
type CustomerInfo struct {
	ActiveEntitlements map[string]Entitlement
	ManagementURL      string
}

// Product describes a purchasable store product.
type Product struct {
	Identifier  string
	Title       string
	Description string
	Price       float64
	PriceString string
}

// Package is a purchasable bundle exposed by the provider.
type Package struct {
	Identifier  string
	PackageType string
	Product     Product
}

// Offering groups the packages currently on sale.
type Offering struct {
	AvailablePackages []Package
}

// Offerings is the provider's offerings snapshot.
type Offerings struct {
	Current *Offering
}

// ProviderConfig binds the provider to an identity-backed account.
// Purchases must be attributable, so AppUserID is never anonymous.
type ProviderConfig struct {
	APIKey    string
	AppUserID string
}

// Provider is the purchase SDK boundary.
type Provider interface {
	Configure(ctx context.Context, cfg ProviderConfig) error
	GetOfferings(ctx context.Context) (Offerings, error)
	PurchasePackage(ctx context.Context, pkg Package) (CustomerInfo, error)
	RestorePurchases(ctx context.Context) (CustomerInfo, error)
	GetCustomerInfo(ctx context.Context) (CustomerInfo, error)
}
