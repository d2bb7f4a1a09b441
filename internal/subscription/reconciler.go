// Package subscription reconciles raw purchase-provider state into a
// normalized subscription standing for the current identity.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Status is the normalized subscription state.
type Status string

const (
	StatusNone    Status = "none"
	StatusTrial   Status = "trial"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

// PlanType classifies a purchasable package.
type PlanType string

const (
	PlanMonthly PlanType = "monthly"
	PlanYearly  PlanType = "yearly"
)

// Standing is the consumer-facing subscription status. It is derived
// purely from the latest entitlement snapshot and replaced wholesale on
// every refresh, never patched field-by-field.
type Standing struct {
	Status             Status `json:"status"`
	PlanName           string `json:"planName,omitempty"`
	Price              string `json:"price,omitempty"`
	NextBillingDate    string `json:"nextBillingDate,omitempty"`
	TrialDaysRemaining *int   `json:"trialDaysRemaining,omitempty"`
	ExpirationDate     string `json:"expirationDate,omitempty"`
	IsSubscribed       bool   `json:"isSubscribed"`
}

// ProductInfo is the consumer-facing projection of a store product.
type ProductInfo struct {
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// OfferingPackage is the consumer-facing projection of a purchasable
// package, classified into a plan type.
type OfferingPackage struct {
	Identifier    string      `json:"identifier"`
	PlanType      PlanType    `json:"planType"`
	Price         string      `json:"price"`
	PricePerMonth string      `json:"pricePerMonth"`
	Product       ProductInfo `json:"product"`
}

// Result is the outcome of a user-facing subscription operation.
// Recoverable conditions come back here, never as panics.
type Result struct {
	Success bool
	Error   string
	Message string
}

// Well-known Result error strings.
const (
	ErrorNotInitialized = "not initialized"
	ErrorCancelled      = "cancelled"
)

// StandingStore snapshots the derived standing for offline-first reads.
type StandingStore interface {
	SaveStanding(ctx context.Context, identity string, s Standing) error
}

// Reconciler owns purchase-provider initialization for the current
// identity and the single authoritative Standing value.
type Reconciler struct {
	provider Provider
	apiKey   string

	mu          sync.Mutex
	initialized bool
	identity    string
	err         error
	standing    Standing
	packages    []OfferingPackage

	store StandingStore
	open  func(url string)
}

// NewReconciler creates an uninitialized reconciler. Call Initialize once
// an identity is available.
func NewReconciler(provider Provider, apiKey string) *Reconciler {
	return &Reconciler{
		provider: provider,
		apiKey:   apiKey,
		standing: Standing{Status: StatusNone},
		open: func(url string) {
			slog.Info("Subscription management surface", "url", url)
		},
	}
}

// SetStore attaches a local standing snapshot store.
func (r *Reconciler) SetStore(store StandingStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = store
}

// SetOpener replaces how Manage surfaces the management URL.
func (r *Reconciler) SetOpener(fn func(url string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn != nil {
		r.open = fn
	}
}

// Initialize configures the provider for identity and refreshes the
// standing. Already-initialized or identity-less calls are no-ops. On
// failure the error is recorded and the reconciler stays uninitialized;
// there is no automatic retry.
func (r *Reconciler) Initialize(ctx context.Context, identity string) error {
	r.mu.Lock()
	if r.initialized || identity == "" {
		r.mu.Unlock()
		return nil
	}
	apiKey := r.apiKey
	r.mu.Unlock()

	if apiKey == "" {
		err := fmt.Errorf("purchase provider API key not configured")
		r.recordErr(err)
		return err
	}

	if err := r.provider.Configure(ctx, ProviderConfig{APIKey: apiKey, AppUserID: identity}); err != nil {
		err = fmt.Errorf("configure purchase provider: %w", err)
		r.recordErr(err)
		return err
	}

	r.mu.Lock()
	r.initialized = true
	r.identity = identity
	r.err = nil
	r.mu.Unlock()
	slog.Info("Purchase provider initialized", "user_id", identity)

	if err := r.RefreshStatus(ctx); err != nil {
		slog.Warn("Initial subscription status fetch failed", "error", err, "user_id", identity)
	}
	return nil
}

// OnIdentityChanged re-targets the provider at a new identity. Any prior
// standing, offerings and recorded error are cleared; a non-empty identity
// triggers a fresh Initialize.
func (r *Reconciler) OnIdentityChanged(id string) {
	r.mu.Lock()
	if r.initialized && id == r.identity {
		r.mu.Unlock()
		return
	}
	r.initialized = false
	r.identity = ""
	r.err = nil
	r.standing = Standing{Status: StatusNone}
	r.packages = nil
	r.mu.Unlock()

	if id == "" {
		return
	}
	if err := r.Initialize(context.Background(), id); err != nil {
		slog.Warn("Purchase provider initialization deferred", "error", err, "user_id", id)
	}
}

func (r *Reconciler) recordErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	slog.Error("Purchase provider initialization failed", "error", err)
}

// RefreshStatus fetches the current entitlement snapshot and replaces the
// standing wholesale. No-op when uninitialized.
func (r *Reconciler) RefreshStatus(ctx context.Context) error {
	if !r.Initialized() {
		slog.Debug("Subscription status refresh skipped, provider not initialized")
		return nil
	}

	info, err := r.provider.GetCustomerInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetch customer info: %w", err)
	}
	r.applyStanding(ctx, deriveStanding(info, time.Now()))
	return nil
}

// LoadOfferings fetches the provider's packages, classifies them into plan
// types and drops anything that matches neither plan.
func (r *Reconciler) LoadOfferings(ctx context.Context) ([]OfferingPackage, error) {
	if !r.Initialized() {
		return nil, fmt.Errorf("load offerings: %s", ErrorNotInitialized)
	}

	offerings, err := r.provider.GetOfferings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch offerings: %w", err)
	}
	if offerings.Current == nil {
		return nil, nil
	}

	var packages []OfferingPackage
	for _, pkg := range offerings.Current.AvailablePackages {
		plan, ok := classifyPackage(pkg)
		if !ok {
			slog.Debug("Skipping unclassifiable package", "identifier", pkg.Identifier)
			continue
		}
		packages = append(packages, OfferingPackage{
			Identifier:    pkg.Identifier,
			PlanType:      plan,
			Price:         pkg.Product.PriceString,
			PricePerMonth: pricePerMonth(pkg, plan),
			Product: ProductInfo{
				Identifier:  pkg.Product.Identifier,
				Title:       pkg.Product.Title,
				Description: pkg.Product.Description,
			},
		})
	}

	r.mu.Lock()
	r.packages = packages
	r.mu.Unlock()
	return packages, nil
}

// Purchase buys the package matching planType. User cancellation is a
// non-fatal outcome, distinguished so the UI skips the error dialog.
func (r *Reconciler) Purchase(ctx context.Context, planType PlanType) Result {
	if !r.Initialized() {
		return Result{Success: false, Error: ErrorNotInitialized}
	}

	offerings, err := r.provider.GetOfferings(ctx)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	if offerings.Current == nil {
		return Result{Success: false, Error: "no offerings available"}
	}

	var target *Package
	for i, pkg := range offerings.Current.AvailablePackages {
		if plan, ok := classifyPackage(pkg); ok && plan == planType {
			target = &offerings.Current.AvailablePackages[i]
			break
		}
	}
	if target == nil {
		return Result{Success: false, Error: fmt.Sprintf("no %s package available", planType)}
	}

	slog.Info("Purchasing package", "identifier", target.Identifier, "plan", planType)
	info, err := r.provider.PurchasePackage(ctx, *target)
	if err != nil {
		if errors.Is(err, ErrUserCancelled) {
			slog.Info("Purchase cancelled by user", "plan", planType)
			return Result{Success: false, Error: ErrorCancelled}
		}
		return Result{Success: false, Error: err.Error()}
	}

	r.applyStanding(ctx, deriveStanding(info, time.Now()))
	return Result{Success: true}
}

// Restore replays prior purchases. Finding nothing to restore is still a
// success, flagged through Message.
func (r *Reconciler) Restore(ctx context.Context) Result {
	if !r.Initialized() {
		return Result{Success: false, Error: ErrorNotInitialized}
	}

	info, err := r.provider.RestorePurchases(ctx)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	r.applyStanding(ctx, deriveStanding(info, time.Now()))
	if len(info.ActiveEntitlements) == 0 {
		return Result{Success: true, Message: "no purchases found to restore"}
	}
	return Result{Success: true}
}

// Manage surfaces the provider's subscription-management URL through the
// configured opener. Fire-and-forget.
func (r *Reconciler) Manage(ctx context.Context) {
	info, err := r.provider.GetCustomerInfo(ctx)
	if err != nil {
		slog.Warn("Failed to resolve management URL", "error", err)
		return
	}
	if info.ManagementURL == "" {
		return
	}
	r.mu.Lock()
	open := r.open
	r.mu.Unlock()
	open(info.ManagementURL)
}

// Standing returns the current derived standing.
func (r *Reconciler) Standing() Standing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.standing
}

// Packages returns the last loaded offering packages.
func (r *Reconciler) Packages() []OfferingPackage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OfferingPackage, len(r.packages))
	copy(out, r.packages)
	return out
}

// Initialized reports whether the provider has been configured.
func (r *Reconciler) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// Err returns the recorded initialization error, if any.
func (r *Reconciler) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Reconciler) applyStanding(ctx context.Context, s Standing) {
	r.mu.Lock()
	r.standing = s
	identity := r.identity
	store := r.store
	r.mu.Unlock()
	slog.Info("Subscription standing updated", "status", s.Status, "subscribed", s.IsSubscribed)

	if store != nil && identity != "" {
		if err := store.SaveStanding(ctx, identity, s); err != nil {
			slog.Warn("Failed to cache subscription standing", "error", err)
		}
	}
}

// deriveStanding maps a raw entitlement snapshot to a Standing. It is the
// only writer of Standing values.
func deriveStanding(info CustomerInfo, now time.Time) Standing {
	if len(info.ActiveEntitlements) == 0 {
		return Standing{Status: StatusNone}
	}

	// The snapshot is assumed to hold a single active entitlement; pick
	// deterministically when the provider hands back more.
	keys := make([]string, 0, len(info.ActiveEntitlements))
	for k := range info.ActiveEntitlements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ent := info.ActiveEntitlements[keys[0]]

	s := Standing{
		Status:       StatusActive,
		PlanName:     ent.ProductIdentifier,
		IsSubscribed: true,
	}

	if ent.WillRenew && ent.PeriodType == PeriodTypeTrial {
		s.Status = StatusTrial
		if !ent.ExpirationDate.IsZero() {
			days := int(math.Ceil(ent.ExpirationDate.Sub(now).Hours() / 24))
			if days < 0 {
				days = 0
			}
			s.TrialDaysRemaining = &days
		}
	}

	if !ent.ExpirationDate.IsZero() {
		formatted := formatLongDate(ent.ExpirationDate)
		if ent.WillRenew {
			s.NextBillingDate = formatted
		} else {
			s.ExpirationDate = formatted
		}
	}
	return s
}

// classifyPackage resolves a plan type using, in order: the provider's
// package-type tag, the standard identifier convention, product-id
// substrings, then exact test-store ids.
func classifyPackage(pkg Package) (PlanType, bool) {
	switch pkg.PackageType {
	case PackageTypeMonthly:
		return PlanMonthly, true
	case PackageTypeAnnual:
		return PlanYearly, true
	}

	switch strings.ToLower(pkg.Identifier) {
	case "$rc_monthly":
		return PlanMonthly, true
	case "$rc_annual":
		return PlanYearly, true
	}

	productID := strings.ToLower(pkg.Product.Identifier)
	if strings.Contains(productID, "month") {
		return PlanMonthly, true
	}
	if strings.Contains(productID, "year") || strings.Contains(productID, "annual") {
		return PlanYearly, true
	}

	switch productID {
	case "monthly":
		return PlanMonthly, true
	case "yearly":
		return PlanYearly, true
	}
	return "", false
}

// pricePerMonth breaks a yearly price down to a monthly figure; monthly
// packages keep their own price string.
func pricePerMonth(pkg Package, plan PlanType) string {
	if plan == PlanYearly && pkg.Product.Price > 0 {
		return fmt.Sprintf("$%.2f/mo", pkg.Product.Price/12)
	}
	return pkg.Product.PriceString
}

// formatLongDate renders the long human-readable form consumers rely on.
func formatLongDate(t time.Time) string {
	return t.Format("January 2, 2006")
}
