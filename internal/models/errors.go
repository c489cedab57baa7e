package rewards

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAccountNotFound = errors.New("account not found")

	// валидация входных данных
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidAccount = errors.New("invalid account id")
	ErrInvalidCart    = errors.New("invalid cart")

	// бизнес-правила
	ErrInsufficientXP          = errors.New("insufficient XP")
	ErrNoFreezeTokensAvailable = errors.New("no freeze tokens available")
	ErrNoActiveStreak          = errors.New("no active streak")
	ErrAlreadyRefunded         = errors.New("redemption already refunded")
	ErrNotRedemption           = errors.New("transaction is not a redemption")
	ErrNotDiscountTier         = errors.New("XP amount is not a discount tier")

	// целостность
	ErrLedgerIntegrity = errors.New("ledger integrity violation")
	ErrInvalidTable    = errors.New("invalid threshold table")
	ErrInvalidCatalog  = errors.New("invalid catalog")

	// промокоды
	ErrCodeNotFound      = errors.New("promo code not found")
	ErrCodeExpired       = errors.New("promo code expired")
	ErrMinimumNotMet     = errors.New("cart minimum not met")
	ErrCategoryMismatch  = errors.New("no cart item matches promo categories")
	ErrUsageLimitReached = errors.New("promo usage limit reached")
	ErrConditionNotMet   = errors.New("promo condition not met")
)

type PromoErrorCode string

const (
	PromoCodeNotFound      PromoErrorCode = "CodeNotFound"
	PromoCodeExpired       PromoErrorCode = "CodeExpired"
	PromoMinimumNotMet     PromoErrorCode = "MinimumNotMet"
	PromoCategoryMismatch  PromoErrorCode = "CategoryMismatch"
	PromoUsageLimitReached PromoErrorCode = "UsageLimitReached"
	PromoConditionNotMet   PromoErrorCode = "ConditionNotMet"
)

var promoSentinels = map[PromoErrorCode]error{
	PromoCodeNotFound:      ErrCodeNotFound,
	PromoCodeExpired:       ErrCodeExpired,
	PromoMinimumNotMet:     ErrMinimumNotMet,
	PromoCategoryMismatch:  ErrCategoryMismatch,
	PromoUsageLimitReached: ErrUsageLimitReached,
	PromoConditionNotMet:   ErrConditionNotMet,
}

// Ошибка применения промокода
type PromoError struct {
	Code  PromoErrorCode
	Promo string
}

func NewPromoError(code PromoErrorCode, promo string) *PromoError {
	return &PromoError{Code: code, Promo: promo}
}

func (e *PromoError) Error() string {
	return fmt.Sprintf("promo %q: %v", e.Promo, promoSentinels[e.Code])
}

func (e *PromoError) Is(target error) bool {
	return promoSentinels[e.Code] == target
}
