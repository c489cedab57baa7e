package rewards

import (
	"context"
	"encoding/json"
	"fmt"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	"go.uber.org/zap"
)

// Обработка события активности из очереди
func (s *RewardsService) HandleActivity(ctx context.Context, body []byte) error {
	event := models.ActivityEvent{}
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("activity message: %w", err)
	}
	if event.EventID == "" {
		return fmt.Errorf("activity without eventId: %w", models.ErrInvalidAmount)
	}
	result, err := s.RecordAction(ctx, event.AccountID, event.ActionType, event.Metadata, event.EventID, event.OccurredAt)
	if err != nil {
		return err
	}
	if result.Duplicate {
		s.logger.Info("duplicate activity", zap.String("event", event.EventID))
	}
	return nil
}

// Возврат заказа: возвращается XP, списанный при оформлении
func (s *RewardsService) HandleReturn(ctx context.Context, body []byte) error {
	event := models.ReturnEvent{}
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("return message: %w", err)
	}
	tnx, err := s.RefundOrder(ctx, event.AccountID, event.OrderID)
	if err != nil {
		return err
	}
	if tnx == nil {
		s.logger.Info("return without redemption", zap.String("order", event.OrderID))
	}
	return nil
}

// Списание из очереди. redeemID возвращается и при ошибке, если его удалось прочитать
func (s *RewardsService) HandleRedeem(ctx context.Context, body []byte) (redeemID string, err error) {
	msg := models.RedeemMessage{}
	if err = json.Unmarshal(body, &msg); err != nil {
		return "", fmt.Errorf("redeem message: %w", err)
	}
	if msg.RedeemID == "" {
		return "", fmt.Errorf("redeem without redeemId: %w", models.ErrInvalidAmount)
	}
	_, _, err = s.RedeemXP(ctx, msg.AccountID, msg.Amount, "redeem:"+msg.RedeemID)
	return msg.RedeemID, err
}
