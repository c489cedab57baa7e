package rewards

import (
	"context"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	"go.uber.org/zap"
)

// Уведомления в лог, когда брокер не настроен
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n models.Notification) error {
	l.logger.Info("notification",
		zap.String("account", n.AccountID),
		zap.String("type", string(n.Type)),
		zap.String("key", n.IdempotencyKey),
		zap.String("body", n.Body),
	)
	return nil
}
