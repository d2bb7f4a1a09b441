package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryProvider is an in-memory Provider used in development builds and
// tests. It mimics a test store: two seeded packages and purchases that
// grant a "premium" entitlement.
type MemoryProvider struct {
	mu           sync.Mutex
	configured   bool
	appUserID    string
	offerings    Offerings
	info         CustomerInfo
	configureErr error
	cancelNext   bool
}

// NewMemoryProvider creates a provider seeded with monthly and yearly
// test-store packages and no entitlements.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		offerings: Offerings{Current: &Offering{AvailablePackages: []Package{
			{
				Identifier:  "$rc_monthly",
				PackageType: PackageTypeMonthly,
				Product: Product{
					Identifier:  "monthly",
					Title:       "Monthly Plan",
					Description: "Full companion access, billed monthly",
					Price:       12.99,
					PriceString: "$12.99",
				},
			},
			{
				Identifier:  "$rc_annual",
				PackageType: PackageTypeAnnual,
				Product: Product{
					Identifier:  "yearly",
					Title:       "Annual Plan",
					Description: "Full companion access, billed yearly",
					Price:       119.88,
					PriceString: "$119.88",
				},
			},
		}}},
		info: CustomerInfo{ActiveEntitlements: map[string]Entitlement{}},
	}
}

// Configure binds the provider to an account.
func (p *MemoryProvider) Configure(_ context.Context, cfg ProviderConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.configureErr != nil {
		return p.configureErr
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("missing API key")
	}
	if cfg.AppUserID == "" {
		return fmt.Errorf("missing app user id")
	}
	p.configured = true
	p.appUserID = cfg.AppUserID
	return nil
}

// GetOfferings returns the seeded offerings.
func (p *MemoryProvider) GetOfferings(context.Context) (Offerings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.configured {
		return Offerings{}, fmt.Errorf("provider not configured")
	}
	return p.offerings, nil
}

// PurchasePackage grants a premium entitlement for the bought package.
func (p *MemoryProvider) PurchasePackage(_ context.Context, pkg Package) (CustomerInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.configured {
		return CustomerInfo{}, fmt.Errorf("provider not configured")
	}
	if p.cancelNext {
		p.cancelNext = false
		return CustomerInfo{}, ErrUserCancelled
	}

	period := 30 * 24 * time.Hour
	if pkg.PackageType == PackageTypeAnnual {
		period = 365 * 24 * time.Hour
	}
	p.info = CustomerInfo{
		ActiveEntitlements: map[string]Entitlement{
			"premium": {
				ProductIdentifier: pkg.Product.Identifier,
				WillRenew:         true,
				PeriodType:        PeriodTypeNormal,
				ExpirationDate:    time.Now().Add(period),
			},
		},
		ManagementURL: "https://store.example/manage/" + p.appUserID,
	}
	return p.info, nil
}

// RestorePurchases returns whatever entitlements the account holds.
func (p *MemoryProvider) RestorePurchases(ctx context.Context) (CustomerInfo, error) {
	return p.GetCustomerInfo(ctx)
}

// GetCustomerInfo returns the current entitlement snapshot.
func (p *MemoryProvider) GetCustomerInfo(context.Context) (CustomerInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.configured {
		return CustomerInfo{}, fmt.Errorf("provider not configured")
	}
	return p.info, nil
}

// SetCustomerInfo replaces the entitlement snapshot. Test hook.
func (p *MemoryProvider) SetCustomerInfo(info CustomerInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.info = info
}

// CancelNextPurchase makes the next PurchasePackage behave as if the user
// dismissed the payment sheet.
func (p *MemoryProvider) CancelNextPurchase() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelNext = true
}

// SetConfigureError makes Configure fail. Test hook.
func (p *MemoryProvider) SetConfigureError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configureErr = err
}
