package subscription

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDeriveStanding_NoEntitlements(t *testing.T) {
	s := deriveStanding(CustomerInfo{}, time.Now())

	if s.Status != StatusNone {
		t.Errorf("Expected status none, got %s", s.Status)
	}
	if s.IsSubscribed {
		t.Error("Expected not subscribed")
	}
	if s.PlanName != "" || s.Price != "" || s.NextBillingDate != "" || s.ExpirationDate != "" {
		t.Errorf("Expected empty plan fields, got %+v", s)
	}
	if s.TrialDaysRemaining != nil {
		t.Errorf("Expected nil trial days, got %d", *s.TrialDaysRemaining)
	}
}

func TestDeriveStanding_Trial(t *testing.T) {
	now := time.Now()
	info := CustomerInfo{ActiveEntitlements: map[string]Entitlement{
		"premium": {
			ProductIdentifier: "yearly",
			WillRenew:         true,
			PeriodType:        PeriodTypeTrial,
			ExpirationDate:    now.Add(3 * 24 * time.Hour),
		},
	}}

	s := deriveStanding(info, now)

	if s.Status != StatusTrial {
		t.Errorf("Expected trial status, got %s", s.Status)
	}
	if !s.IsSubscribed {
		t.Error("Expected subscribed during trial")
	}
	if s.TrialDaysRemaining == nil {
		t.Fatal("Expected trial days remaining")
	}
	if *s.TrialDaysRemaining < 2 || *s.TrialDaysRemaining > 3 {
		t.Errorf("Expected 2-3 trial days remaining, got %d", *s.TrialDaysRemaining)
	}
	if s.NextBillingDate == "" {
		t.Error("Expected next billing date for a renewing entitlement")
	}
	if s.ExpirationDate != "" {
		t.Errorf("Expected no expiration date while renewing, got %s", s.ExpirationDate)
	}
}

func TestDeriveStanding_ExpiredTrialClampsToZero(t *testing.T) {
	now := time.Now()
	info := CustomerInfo{ActiveEntitlements: map[string]Entitlement{
		"premium": {
			ProductIdentifier: "monthly",
			WillRenew:         true,
			PeriodType:        PeriodTypeTrial,
			ExpirationDate:    now.Add(-2 * time.Hour),
		},
	}}

	s := deriveStanding(info, now)
	if s.TrialDaysRemaining == nil || *s.TrialDaysRemaining != 0 {
		t.Errorf("Expected trial days clamped to 0, got %v", s.TrialDaysRemaining)
	}
}

func TestDeriveStanding_ActiveRenewing(t *testing.T) {
	now := time.Date(2025, time.December, 1, 12, 0, 0, 0, time.UTC)
	exp := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	info := CustomerInfo{ActiveEntitlements: map[string]Entitlement{
		"premium": {
			ProductIdentifier: "yearly",
			WillRenew:         true,
			PeriodType:        PeriodTypeNormal,
			ExpirationDate:    exp,
		},
	}}

	s := deriveStanding(info, now)

	if s.Status != StatusActive {
		t.Errorf("Expected active status, got %s", s.Status)
	}
	if s.PlanName != "yearly" {
		t.Errorf("Expected plan yearly, got %s", s.PlanName)
	}
	if s.NextBillingDate != "January 5, 2026" {
		t.Errorf("Expected long-form billing date, got %q", s.NextBillingDate)
	}
	if s.ExpirationDate != "" {
		t.Errorf("Expected no expiration date while renewing, got %q", s.ExpirationDate)
	}
	if s.TrialDaysRemaining != nil {
		t.Error("Expected no trial days outside trial")
	}
}

func TestDeriveStanding_NonRenewing(t *testing.T) {
	now := time.Now()
	exp := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	info := CustomerInfo{ActiveEntitlements: map[string]Entitlement{
		"premium": {
			ProductIdentifier: "monthly",
			WillRenew:         false,
			PeriodType:        PeriodTypeNormal,
			ExpirationDate:    exp,
		},
	}}

	s := deriveStanding(info, now)

	if s.NextBillingDate != "" {
		t.Errorf("Expected no billing date for a cancelled entitlement, got %q", s.NextBillingDate)
	}
	if s.ExpirationDate != "March 14, 2026" {
		t.Errorf("Expected long-form expiration date, got %q", s.ExpirationDate)
	}
	if !s.IsSubscribed {
		t.Error("Expected still subscribed until expiration")
	}
}

func TestClassifyPackage(t *testing.T) {
	tests := []struct {
		name string
		pkg  Package
		want PlanType
		ok   bool
	}{
		{
			// The provider tag wins regardless of identifier text.
			name: "annual tag beats monthly-looking product id",
			pkg:  Package{PackageType: PackageTypeAnnual, Product: Product{Identifier: "com.app.month_pass"}},
			want: PlanYearly,
			ok:   true,
		},
		{
			name: "monthly tag",
			pkg:  Package{PackageType: PackageTypeMonthly},
			want: PlanMonthly,
			ok:   true,
		},
		{
			name: "standard monthly identifier without tag",
			pkg:  Package{Identifier: "$rc_monthly"},
			want: PlanMonthly,
			ok:   true,
		},
		{
			name: "standard annual identifier without tag",
			pkg:  Package{Identifier: "$rc_annual"},
			want: PlanYearly,
			ok:   true,
		},
		{
			name: "product id substring month",
			pkg:  Package{Product: Product{Identifier: "com.app.premium_monthly"}},
			want: PlanMonthly,
			ok:   true,
		},
		{
			name: "product id substring annual",
			pkg:  Package{Product: Product{Identifier: "com.app.premium_annual"}},
			want: PlanYearly,
			ok:   true,
		},
		{
			name: "unclassifiable package dropped",
			pkg:  Package{Identifier: "custom", Product: Product{Identifier: "com.app.lifetime"}},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classifyPackage(tt.pkg)
			if ok != tt.ok {
				t.Fatalf("classifyPackage ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("classifyPackage = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLoadOfferings_YearlyPricePerMonth(t *testing.T) {
	provider := NewMemoryProvider()
	r := NewReconciler(provider, "test-key")
	ctx := context.Background()

	if err := r.Initialize(ctx, "user-a"); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}

	packages, err := r.LoadOfferings(ctx)
	if err != nil {
		t.Fatalf("LoadOfferings error: %v", err)
	}
	if len(packages) != 2 {
		t.Fatalf("Expected 2 packages, got %d", len(packages))
	}

	var yearly, monthly *OfferingPackage
	for i := range packages {
		switch packages[i].PlanType {
		case PlanYearly:
			yearly = &packages[i]
		case PlanMonthly:
			monthly = &packages[i]
		}
	}
	if yearly == nil || monthly == nil {
		t.Fatalf("Expected one yearly and one monthly package, got %+v", packages)
	}
	if yearly.PricePerMonth != "$9.99/mo" {
		t.Errorf("Expected yearly price per month $9.99/mo, got %s", yearly.PricePerMonth)
	}
	if monthly.PricePerMonth != "$12.99" {
		t.Errorf("Expected monthly price per month to match price, got %s", monthly.PricePerMonth)
	}
}

func TestPurchase_Cancellation(t *testing.T) {
	provider := NewMemoryProvider()
	r := NewReconciler(provider, "test-key")
	ctx := context.Background()

	if err := r.Initialize(ctx, "user-a"); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	provider.CancelNextPurchase()

	res := r.Purchase(ctx, PlanMonthly)
	if res.Success {
		t.Error("Expected cancelled purchase to not succeed")
	}
	if res.Error != ErrorCancelled {
		t.Errorf("Expected error %q, got %q", ErrorCancelled, res.Error)
	}
	if r.Err() != nil {
		t.Errorf("Cancellation must not set the fatal error field, got %v", r.Err())
	}
	if r.Standing().IsSubscribed {
		t.Error("Expected standing unchanged after cancellation")
	}
}

func TestPurchase_SuccessUpdatesStanding(t *testing.T) {
	provider := NewMemoryProvider()
	r := NewReconciler(provider, "test-key")
	ctx := context.Background()

	if err := r.Initialize(ctx, "user-a"); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}

	res := r.Purchase(ctx, PlanYearly)
	if !res.Success {
		t.Fatalf("Expected purchase success, got %+v", res)
	}

	s := r.Standing()
	if s.Status != StatusActive || !s.IsSubscribed {
		t.Errorf("Expected active standing after purchase, got %+v", s)
	}
	if s.PlanName != "yearly" {
		t.Errorf("Expected plan yearly, got %s", s.PlanName)
	}
}

func TestOperationsBeforeInitialize(t *testing.T) {
	r := NewReconciler(NewMemoryProvider(), "test-key")
	ctx := context.Background()

	if res := r.Purchase(ctx, PlanMonthly); res.Success || res.Error != ErrorNotInitialized {
		t.Errorf("Expected not-initialized purchase failure, got %+v", res)
	}
	if res := r.Restore(ctx); res.Success || res.Error != ErrorNotInitialized {
		t.Errorf("Expected not-initialized restore failure, got %+v", res)
	}
	if _, err := r.LoadOfferings(ctx); err == nil {
		t.Error("Expected not-initialized offerings load to fail")
	}
	// RefreshStatus is documented as a no-op when uninitialized.
	if err := r.RefreshStatus(ctx); err != nil {
		t.Errorf("Expected refresh no-op, got %v", err)
	}
}

func TestInitialize_NoopCases(t *testing.T) {
	provider := NewMemoryProvider()
	r := NewReconciler(provider, "test-key")
	ctx := context.Background()

	if err := r.Initialize(ctx, ""); err != nil {
		t.Errorf("Expected identity-less initialize to be a no-op, got %v", err)
	}
	if r.Initialized() {
		t.Error("Expected reconciler uninitialized without an identity")
	}

	if err := r.Initialize(ctx, "user-a"); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	if err := r.Initialize(ctx, "user-a"); err != nil {
		t.Errorf("Expected repeat initialize to be a no-op, got %v", err)
	}
}

func TestOnIdentityChanged_SwitchAndSignOut(t *testing.T) {
	provider := NewMemoryProvider()
	r := NewReconciler(provider, "test-key")
	ctx := context.Background()

	if err := r.Initialize(ctx, "user-a"); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	if res := r.Purchase(ctx, PlanMonthly); !res.Success {
		t.Fatalf("Purchase failed: %+v", res)
	}
	if !r.Standing().IsSubscribed {
		t.Fatal("Expected subscribed standing after purchase")
	}

	// Same identity again changes nothing.
	r.OnIdentityChanged("user-a")
	if !r.Initialized() || !r.Standing().IsSubscribed {
		t.Error("Expected same-identity notification to be a no-op")
	}

	// A different identity re-targets the provider from scratch.
	r.OnIdentityChanged("user-b")
	if !r.Initialized() {
		t.Error("Expected reconciler re-initialized for the new identity")
	}

	// Sign-out tears everything down.
	r.OnIdentityChanged("")
	if r.Initialized() {
		t.Error("Expected reconciler uninitialized after sign-out")
	}
	if s := r.Standing(); s.Status != StatusNone || s.IsSubscribed {
		t.Errorf("Expected cleared standing after sign-out, got %+v", s)
	}
	if len(r.Packages()) != 0 {
		t.Error("Expected cached offerings cleared after sign-out")
	}
}

func TestInitialize_FailureRecordedWithoutRetry(t *testing.T) {
	provider := NewMemoryProvider()
	provider.SetConfigureError(errors.New("store unreachable"))
	r := NewReconciler(provider, "test-key")

	if err := r.Initialize(context.Background(), "user-a"); err == nil {
		t.Fatal("Expected initialize failure")
	}
	if r.Initialized() {
		t.Error("Expected reconciler to stay uninitialized after failure")
	}
	if r.Err() == nil {
		t.Error("Expected initialization error recorded")
	}
}

func TestInitialize_MissingAPIKey(t *testing.T) {
	r := NewReconciler(NewMemoryProvider(), "")

	if err := r.Initialize(context.Background(), "user-a"); err == nil {
		t.Fatal("Expected missing API key to fail initialization")
	}
	if r.Err() == nil {
		t.Error("Expected error recorded for missing API key")
	}
}

func TestRestore_NothingToRestore(t *testing.T) {
	provider := NewMemoryProvider()
	r := NewReconciler(provider, "test-key")
	ctx := context.Background()

	if err := r.Initialize(ctx, "user-a"); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}

	res := r.Restore(ctx)
	if !res.Success {
		t.Fatalf("Expected restore success, got %+v", res)
	}
	if res.Message != "no purchases found to restore" {
		t.Errorf("Expected nothing-to-restore message, got %q", res.Message)
	}
}

func TestManage_UsesOpener(t *testing.T) {
	provider := NewMemoryProvider()
	r := NewReconciler(provider, "test-key")
	ctx := context.Background()

	var opened string
	r.SetOpener(func(url string) { opened = url })

	if err := r.Initialize(ctx, "user-a"); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}

	// No entitlements yet: no management URL, opener untouched.
	r.Manage(ctx)
	if opened != "" {
		t.Errorf("Expected no management URL before purchase, got %q", opened)
	}

	if res := r.Purchase(ctx, PlanMonthly); !res.Success {
		t.Fatalf("Purchase failed: %+v", res)
	}
	r.Manage(ctx)
	if opened == "" {
		t.Error("Expected management URL handed to opener after purchase")
	}
}
