/**
 * @description
 * This file contains the core business logic for the funding service. The
 * `Service` struct orchestrates project lifecycle operations, contribution
 * checkout creation, and identity verification review, coordinating between
 * the database repository, the payment provider clients, and the message
 * broker.
 *
 * Key features:
 * - Pre-flight goal checks run before any provider session is created, so
 *   over-goal contributions are rejected without touching a provider.
 * - All money-affecting failures are either surfaced to the caller or
 *   logged with enough context for manual reconciliation; amounts are never
 *   guessed or best-efforted.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - github.com/shopspring/decimal: Exact decimal money.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/stripeclient, pkg/paypalclient, pkg/rabbitmq: External service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundmythesis/funding-service/internal/domain"
	"github.com/fundmythesis/funding-service/internal/store"
	"github.com/fundmythesis/funding-service/pkg/paypalclient"
	"github.com/fundmythesis/funding-service/pkg/stripeclient"
)

// EventsExchange is the topic exchange all domain events are published to.
const EventsExchange = "fundmythesis.events"

var (
	ErrProjectNotOpen      = errors.New("project is not accepting contributions")
	ErrInvalidAmount       = errors.New("contribution amount must be positive")
	ErrUnknownProvider     = errors.New("unknown payment provider")
	ErrProviderUnavailable = errors.New("payment provider request failed")
)

// RateLimitedError indicates the contributor exceeded the checkout rate limit.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("checkout rate limit exceeded, retry after %ds", e.RetryAfterSeconds)
}

// Repository defines the persistence operations the service needs. The
// concrete implementation lives in internal/store.
type Repository interface {
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	CreateProject(ctx context.Context, project *domain.Project) error
	FindProjectByID(ctx context.Context, projectID uuid.UUID) (*domain.Project, error)
	DecideProject(ctx context.Context, projectID uuid.UUID, approve bool) error

	InsertSupportIfAbsent(ctx context.Context, support *domain.Support) (bool, error)
	SumSupportAmounts(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error)
	ListSupportsByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Support, error)

	ListPayoutCandidates(ctx context.Context, now time.Time) ([]domain.PayoutCandidate, error)
	CreatePayoutRecord(ctx context.Context, record *domain.PayoutRecord) (bool, error)
	MarkPayoutPaid(ctx context.Context, payoutID uuid.UUID) error
	FindPayoutByProjectID(ctx context.Context, projectID uuid.UUID) (*domain.PayoutRecord, error)

	SubmitVerification(ctx context.Context, verification *domain.IdentityVerification) error
	DecideVerification(ctx context.Context, verificationID uuid.UUID, approve bool) error
}

// StripeGateway is the slice of the Stripe client the service uses.
type StripeGateway interface {
	CreateCheckoutSession(ctx context.Context, amount decimal.Decimal, currency, title string, contributorID, projectID uuid.UUID, successURL, cancelURL string) (*stripeclient.CheckoutSession, error)
}

// PayPalGateway is the slice of the PayPal client the service uses.
type PayPalGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency string, contributorID, projectID uuid.UUID, returnURL, cancelURL string) (*paypalclient.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypalclient.CaptureResult, error)
}

// Publisher mirrors rabbitmq.Publisher without importing the package in
// every test.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// CheckoutRateLimiter is the optional distributed rate limiter applied to
// checkout-session creation.
type CheckoutRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for the funding platform.
type Service struct {
	repo          Repository
	stripe        StripeGateway
	paypal        PayPalGateway
	eventProducer Publisher

	feeRate            decimal.Decimal
	checkoutSuccessURL string
	checkoutCancelURL  string

	rateLimiter    CheckoutRateLimiter
	checkoutPerMin int
}

// NewService creates a new funding service instance.
func NewService(repo Repository, stripe StripeGateway, paypal PayPalGateway, producer Publisher, feeRate decimal.Decimal, successURL, cancelURL string) *Service {
	return &Service{
		repo:               repo,
		stripe:             stripe,
		paypal:             paypal,
		eventProducer:      producer,
		feeRate:            feeRate,
		checkoutSuccessURL: successURL,
		checkoutCancelURL:  cancelURL,
	}
}

// SetCheckoutRateLimiter enables distributed rate limiting of checkout
// creation. limitPerMinute <= 0 disables the limiter.
func (s *Service) SetCheckoutRateLimiter(limiter CheckoutRateLimiter, limitPerMinute int) {
	s.rateLimiter = limiter
	s.checkoutPerMin = limitPerMinute
}

// CreateProject registers a new project owned by the authenticated user.
// Projects start submitted and undecided.
func (s *Service) CreateProject(ctx context.Context, ownerID uuid.UUID, payload domain.CreateProjectPayload) (*domain.Project, error) {
	if !payload.GoalAmount.IsPositive() {
		return nil, errors.New("goal amount must be positive")
	}
	if payload.Title == "" {
		return nil, errors.New("title is required")
	}
	if !payload.Deadline.After(time.Now()) {
		return nil, errors.New("deadline must be in the future")
	}
	if _, err := s.repo.FindUserByID(ctx, ownerID); err != nil {
		return nil, err
	}

	project := &domain.Project{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       payload.Title,
		Description: payload.Description,
		GoalAmount:  payload.GoalAmount.Round(2),
		Deadline:    payload.Deadline,
		Submitted:   true,
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

// GetProjectView returns a project together with its ledger-derived raised
// and remaining amounts, and the payout record once one exists.
func (s *Service) GetProjectView(ctx context.Context, projectID uuid.UUID) (*domain.ProjectView, error) {
	project, err := s.repo.FindProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	raised, err := s.repo.SumSupportAmounts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	payout, err := s.repo.FindPayoutByProjectID(ctx, projectID)
	if err != nil && !errors.Is(err, store.ErrPayoutNotFound) {
		return nil, err
	}
	return &domain.ProjectView{
		Project:   *project,
		Raised:    raised.Round(2),
		Remaining: remainingAmount(project.GoalAmount, raised),
		Payout:    payout,
	}, nil
}

// ListProjectSupports returns the confirmed contributions recorded for a
// project, newest first.
func (s *Service) ListProjectSupports(ctx context.Context, projectID uuid.UUID) ([]domain.Support, error) {
	if _, err := s.repo.FindProjectByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListSupportsByProject(ctx, projectID)
}

// DecideProject applies the one-way administrator approve/reject transition
// and publishes a project.decided event.
func (s *Service) DecideProject(ctx context.Context, projectID uuid.UUID, approve bool) error {
	if err := s.repo.DecideProject(ctx, projectID, approve); err != nil {
		return err
	}

	project, err := s.repo.FindProjectByID(ctx, projectID)
	if err != nil {
		log.Printf("level=warn component=app msg=\"decided project reload failed\" project_id=%s err=%v", projectID, err)
		return nil
	}
	s.publishEvent(ctx, "project.decided", domain.ProjectDecidedEvent{
		ProjectID: project.ID,
		OwnerID:   project.OwnerID,
		Approved:  approve,
	})
	return nil
}

// CreateCheckout runs the pre-flight goal checks and creates a provider
// checkout session for the contribution.
func (s *Service) CreateCheckout(ctx context.Context, contributorID uuid.UUID, projectID uuid.UUID, req domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	if err := s.consumeCheckoutRateLimit(ctx, contributorID); err != nil {
		return nil, err
	}

	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := s.repo.FindUserByID(ctx, contributorID); err != nil {
		return nil, err
	}

	project, err := s.repo.FindProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	raised, err := s.repo.SumSupportAmounts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.Submitted || !project.Approved || project.Rejected || !time.Now().Before(project.Deadline) {
		return nil, ErrProjectNotOpen
	}
	if err := assertWithinGoal(project.GoalAmount, raised, amount); err != nil {
		return nil, err
	}

	switch req.Provider {
	case domain.ProviderStripe:
		session, err := s.stripe.CreateCheckoutSession(ctx, amount, req.Currency, project.Title, contributorID, projectID, s.checkoutSuccessURL, s.checkoutCancelURL)
		if err != nil {
			log.Printf("level=error component=app msg=\"stripe session creation failed\" project_id=%s contributor_id=%s amount=%s err=%v",
				projectID, contributorID, amount.StringFixed(2), err)
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return &domain.CheckoutResponse{Provider: domain.ProviderStripe, SessionID: session.ID, RedirectURL: session.URL}, nil

	case domain.ProviderPayPal:
		order, err := s.paypal.CreateOrder(ctx, amount, req.Currency, contributorID, projectID, s.checkoutSuccessURL, s.checkoutCancelURL)
		if err != nil {
			log.Printf("level=error component=app msg=\"paypal order creation failed\" project_id=%s contributor_id=%s amount=%s err=%v",
				projectID, contributorID, amount.StringFixed(2), err)
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return &domain.CheckoutResponse{Provider: domain.ProviderPayPal, SessionID: order.ID, RedirectURL: order.ApproveURL()}, nil

	default:
		return nil, ErrUnknownProvider
	}
}

// SubmitVerification records a researcher identity submission.
func (s *Service) SubmitVerification(ctx context.Context, userID uuid.UUID, payload domain.SubmitVerificationPayload) (*domain.IdentityVerification, error) {
	if payload.DocumentURL == "" {
		return nil, errors.New("document url is required")
	}
	if _, err := s.repo.FindUserByID(ctx, userID); err != nil {
		return nil, err
	}

	verification := &domain.IdentityVerification{
		ID:          uuid.New(),
		UserID:      userID,
		DocumentURL: payload.DocumentURL,
		Status:      domain.VerificationPending,
	}
	if err := s.repo.SubmitVerification(ctx, verification); err != nil {
		return nil, err
	}
	return verification, nil
}

// DecideVerification applies the administrator decision to a pending
// identity verification.
func (s *Service) DecideVerification(ctx context.Context, verificationID uuid.UUID, approve bool) error {
	return s.repo.DecideVerification(ctx, verificationID, approve)
}

// MarkPayoutPaid flips a payout record to paid, exactly once.
func (s *Service) MarkPayoutPaid(ctx context.Context, payoutID uuid.UUID) error {
	return s.repo.MarkPayoutPaid(ctx, payoutID)
}

func (s *Service) consumeCheckoutRateLimit(ctx context.Context, contributorID uuid.UUID) error {
	if s.rateLimiter == nil || s.checkoutPerMin <= 0 {
		return nil
	}
	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, "checkout", contributorID.String(), s.checkoutPerMin, time.Minute)
	if err != nil {
		// Rate limiting is protective, not money-affecting; fail open.
		log.Printf("level=warn component=app msg=\"checkout rate limiter unavailable\" err=%v", err)
		return nil
	}
	if count > s.checkoutPerMin {
		return &RateLimitedError{RetryAfterSeconds: retryAfter}
	}
	return nil
}

// publishEvent publishes a domain event; failures are logged, never
// propagated into the money path.
func (s *Service) publishEvent(ctx context.Context, routingKey string, body interface{}) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, EventsExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
