package promo

import (
	"context"
	"fmt"
	"time"

	"summit-ticketing/internal/errs"
	"summit-ticketing/internal/logger"
	"summit-ticketing/internal/models"
)

type DBLayer interface {
	GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error)
}

// Service validates promo codes against their time window, usage cap and
// ticket-type restriction. Validation is advisory only: the conditional
// update in DB.Redeem is the sole source of truth under concurrency, and
// checkout runs it through RedeemWithin inside the purchase transaction.
type Service struct {
	DB     DBLayer
	Logger *logger.Logger
}

func NewService(db DBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, Logger: log}
}

// Validate runs the rule chain in a fixed order and reports the first
// failure with its specific reason.
func (s *Service) Validate(ctx context.Context, code string, ticketTypeIDs []string, now time.Time) (*models.PromoValidation, error) {
	if code == "" {
		return nil, errs.Validation("code", "promo code is required")
	}

	promo, err := s.DB.GetPromoByCode(ctx, code)
	if errs.IsNotFound(err) {
		return invalid(errs.ReasonNotFound, "promo code not found"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load promo code %s: %w", code, err)
	}

	if !promo.IsActive {
		return invalid(errs.ReasonInactive, "promo code is not active"), nil
	}
	if now.Before(promo.ValidFrom) {
		return invalid(errs.ReasonNotYetActive, "promo code is not yet active"), nil
	}
	if promo.ValidUntil != nil && now.After(*promo.ValidUntil) {
		return invalid(errs.ReasonExpired, "promo code has expired"), nil
	}
	if promo.UsageLimit != nil && promo.UsedCount >= *promo.UsageLimit {
		return invalid(errs.ReasonLimitReached, "promo code usage limit has been reached"), nil
	}
	if len(promo.ApplicableTicketTypes) > 0 && !intersects(promo.ApplicableTicketTypes, ticketTypeIDs) {
		return invalid(errs.ReasonTicketTypeMismatch, "promo code does not apply to the selected ticket types"), nil
	}

	return &models.PromoValidation{Valid: true, PromoCode: promo}, nil
}

func invalid(reason, message string) *models.PromoValidation {
	return &models.PromoValidation{Valid: false, Reason: reason, Message: message}
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}
