package sudoapi

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PankindProjects/pankind"
	"github.com/PankindProjects/pankind/db"
	"github.com/PankindProjects/pankind/integrations/prometheus"
	"github.com/PankindProjects/pankind/internal/config"
	"github.com/asaskevich/govalidator"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	MinDonationAmount = config.GenFlag("donations.amount.min", decimal.RequireFromString("1.00"), "Minimum accepted donation amount")
	MaxDonationAmount = config.GenFlag("donations.amount.max", decimal.RequireFromString("999999.99"), "Maximum accepted donation amount")

	PlatformFeeRate = config.GenFlag("donations.fees.platform_rate", decimal.RequireFromString("0.025"), "Platform fee rate applied to every donation")
	CardFeeRate     = config.GenFlag("donations.fees.card_rate", decimal.RequireFromString("0.029"), "Proportional processing fee for card payments")
	CardFeeFixed    = config.GenFlag("donations.fees.card_fixed", decimal.RequireFromString("0.30"), "Fixed processing fee for card payments")
	BankTransferFee = config.GenFlag("donations.fees.bank_transfer_fixed", decimal.RequireFromString("0.25"), "Flat processing fee for bank transfers")

	ReceiptAttempts = config.GenFlag("donations.receipt_attempts", 5, "Receipt code allocation attempts before giving up")
)

func feeScheduleFromFlags() *pankind.FeeSchedule {
	return &pankind.FeeSchedule{
		PlatformRate: PlatformFeeRate.Value(),
		Methods: map[pankind.PaymentMethod]pankind.MethodFee{
			pankind.PaymentMethodCard: {
				Rate:  CardFeeRate.Value(),
				Fixed: CardFeeFixed.Value(),
			},
			pankind.PaymentMethodBankTransfer: {
				Fixed: BankTransferFee.Value(),
			},
		},
	}
}

// FeeBreakdown quotes the fee split for an amount without creating anything.
func (s *BaseAPI) FeeBreakdown(amount decimal.Decimal, method pankind.PaymentMethod) (pankind.FeeBreakdown, error) {
	return s.schedule.Compute(amount, method)
}

type DonationRequest struct {
	CampaignID    int                   `json:"campaign_id"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	PaymentMethod pankind.PaymentMethod `json:"payment_method"`

	DonorID   *int   `json:"donor_id"`
	Anonymous bool   `json:"anonymous"`
	Message   string `json:"message"`

	Dedication *pankind.Dedication `json:"dedication"`
}

func (r DonationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CampaignID, validation.Required, validation.Min(1)),
		validation.Field(&r.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&r.PaymentMethod, validation.Required, validation.Length(1, 32)),
		validation.Field(&r.Message, validation.RuneLength(0, 500)),
	)
}

func validateDedication(d *pankind.Dedication) error {
	switch d.Type {
	case pankind.DedicationInHonorOf, pankind.DedicationInMemoryOf:
	default:
		return Statusf(400, "Unknown dedication type")
	}
	if strings.TrimSpace(d.HonoreeName) == "" {
		return Statusf(400, "Dedication needs an honoree name")
	}
	if d.NotifyEmail != "" && !govalidator.IsExistingEmail(d.NotifyEmail) {
		return Statusf(400, "Invalid dedication notification email")
	}
	return nil
}

// CreateDonation validates a donation request, freezes its fee split and
// stores it as pending. Nothing is counted anywhere until the gateway
// confirms the money.
func (s *BaseAPI) CreateDonation(ctx context.Context, req DonationRequest) (*pankind.Donation, error) {
	if err := req.Validate(); err != nil {
		return nil, Statusf(400, "Invalid donation: %s", err)
	}
	if req.Amount.LessThan(MinDonationAmount.Value()) || req.Amount.GreaterThan(MaxDonationAmount.Value()) {
		return nil, pankind.ErrInvalidAmount
	}
	unit, err := currency.ParseISO(req.Currency)
	if err != nil {
		return nil, Statusf(400, "Unknown currency code")
	}

	campaign, err := s.Campaign(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.AcceptsDonations() {
		return nil, Statusf(400, "Campaign is not accepting donations")
	}
	if unit.String() != campaign.Currency {
		return nil, Statusf(400, "Donation currency must match campaign currency (%s)", campaign.Currency)
	}

	if req.DonorID != nil {
		if _, err := s.Donor(ctx, *req.DonorID); err != nil {
			return nil, err
		}
	}
	if req.Dedication != nil {
		if err := validateDedication(req.Dedication); err != nil {
			return nil, err
		}
		req.Dedication.HonoreeName = strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(req.Dedication.HonoreeName))
	}

	breakdown, err := s.schedule.Compute(req.Amount, req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if breakdown.Unpriced {
		slog.WarnContext(ctx, "Unpriced payment method, applying platform fee only",
			slog.String("method", string(req.PaymentMethod)))
	}

	d := &pankind.Donation{
		CampaignID:    req.CampaignID,
		DonorID:       req.DonorID,
		GrossAmount:   req.Amount,
		Currency:      unit.String(),
		PaymentMethod: req.PaymentMethod,

		PlatformFee:   breakdown.PlatformFee,
		ProcessingFee: breakdown.ProcessingFee,
		NetAmount:     breakdown.NetAmount,

		Anonymous:  req.Anonymous,
		Message:    strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(req.Message)),
		Dedication: req.Dedication,
	}
	if err := s.db.CreateDonation(ctx, d); err != nil {
		return nil, fmt.Errorf("couldn't create donation: %w", err)
	}
	prometheus.DonationsCreated.Inc()
	return d, nil
}

func (s *BaseAPI) Donation(ctx context.Context, id int) (*pankind.Donation, error) {
	d, err := s.db.Donation(ctx, id)
	if err != nil || d == nil {
		return nil, fmt.Errorf("donation not found: %w", ErrNotFound)
	}
	return d, nil
}

func (s *BaseAPI) DonationByReceipt(ctx context.Context, receiptID string) (*pankind.Donation, error) {
	if !pankind.ValidReceiptCode(receiptID) {
		return nil, Statusf(400, "Malformed receipt code")
	}
	d, err := s.db.DonationByReceipt(ctx, receiptID)
	if err != nil || d == nil {
		return nil, fmt.Errorf("donation not found: %w", ErrNotFound)
	}
	return d, nil
}

type DonationList struct {
	Donations []*pankind.Donation `json:"donations"`
	Count     int                 `json:"count"`
}

func (s *BaseAPI) Donations(ctx context.Context, filter pankind.DonationFilter) (*DonationList, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 100
	}
	donations, err := s.db.Donations(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("couldn't get donations: %w", err)
	}
	count, err := s.db.CountDonations(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("couldn't count donations: %w", err)
	}
	return &DonationList{Donations: donations, Count: count}, nil
}

// MarkDonationProcessing records that the gateway took over the payment.
func (s *BaseAPI) MarkDonationProcessing(ctx context.Context, id int, reference string) (*pankind.Donation, error) {
	if reference == "" {
		return nil, ErrMissingRequired
	}
	d, effects, err := s.db.MarkDonationProcessing(ctx, id, reference)
	if err != nil {
		return nil, err
	}
	if effects.AlreadyApplied {
		prometheus.WebhookReplays.Inc()
	}
	return d, nil
}

// CompleteDonation settles a donation after the gateway confirmed payment.
// Replays of already settled references are absorbed quietly.
func (s *BaseAPI) CompleteDonation(ctx context.Context, id int, reference string) (*pankind.Donation, error) {
	if reference == "" {
		return nil, ErrMissingRequired
	}
	d, effects, err := s.db.CompleteDonation(ctx, id, reference, ReceiptAttempts.Value(), time.Now())
	if err != nil {
		return nil, err
	}
	s.afterCompletion(ctx, d, effects)
	return d, nil
}

// CompleteDonationByReference is the webhook entrypoint, the gateway only
// knows its own reference.
func (s *BaseAPI) CompleteDonationByReference(ctx context.Context, reference string) (*pankind.Donation, error) {
	if reference == "" {
		return nil, ErrMissingRequired
	}
	d, effects, err := s.db.CompleteDonationByReference(ctx, reference, ReceiptAttempts.Value(), time.Now())
	if err != nil {
		return nil, err
	}
	s.afterCompletion(ctx, d, effects)
	return d, nil
}

func (s *BaseAPI) afterCompletion(ctx context.Context, d *pankind.Donation, effects *db.DonationEffects) {
	if effects.AlreadyApplied {
		prometheus.WebhookReplays.Inc()
		slog.DebugContext(ctx, "Absorbed completion replay", slog.Int("donation_id", d.ID))
		return
	}
	prometheus.DonationsCompleted.Inc()
	slog.InfoContext(ctx, "Donation completed",
		slog.Int("donation_id", d.ID),
		slog.Int("campaign_id", d.CampaignID),
		slog.Any("net_amount", d.NetAmount))

	for _, m := range effects.MilestonesReached {
		s.LogSystemAction(ctx, fmt.Sprintf("Campaign #%d reached milestone %q (%s)", d.CampaignID, m.Label, m.Threshold))
	}
	if effects.CampaignCompleted {
		s.LogSystemAction(ctx, fmt.Sprintf("Campaign #%d reached its goal", d.CampaignID))
	}
}

// FailDonation records a gateway failure for a donation.
func (s *BaseAPI) FailDonation(ctx context.Context, id int, reason string) (*pankind.Donation, error) {
	d, effects, err := s.db.FailDonation(ctx, id, reason, FailureThreshold.Value())
	if err != nil {
		return nil, err
	}
	s.afterFailure(ctx, d, effects)
	return d, nil
}

func (s *BaseAPI) FailDonationByReference(ctx context.Context, reference string, reason string) (*pankind.Donation, error) {
	if reference == "" {
		return nil, ErrMissingRequired
	}
	d, effects, err := s.db.FailDonationByReference(ctx, reference, reason, FailureThreshold.Value())
	if err != nil {
		return nil, err
	}
	s.afterFailure(ctx, d, effects)
	return d, nil
}

func (s *BaseAPI) afterFailure(ctx context.Context, d *pankind.Donation, effects *db.DonationEffects) {
	if effects.AlreadyApplied {
		prometheus.WebhookReplays.Inc()
		return
	}
	prometheus.DonationsFailed.Inc()
	if effects.SubscriptionPaused {
		prometheus.SubscriptionAutopauses.Inc()
		s.LogSystemAction(ctx, fmt.Sprintf("Subscription #%d paused after %d consecutive failed charges", *d.SubscriptionID, FailureThreshold.Value()))
	}
}

// CancelDonation aborts a donation the donor changed their mind about
// before it was handed to the gateway.
func (s *BaseAPI) CancelDonation(ctx context.Context, id int) (*pankind.Donation, error) {
	return s.db.CancelDonation(ctx, id)
}
