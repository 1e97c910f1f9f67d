package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/port"
)

// LogNotifier writes notifications to the log. Used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

var _ port.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (l *LogNotifier) Notify(_ context.Context, n port.Notification) error {
	roles := make([]string, 0, len(n.Audience.Roles))
	for _, r := range n.Audience.Roles {
		roles = append(roles, string(r))
	}

	l.logger.Info(n.Title,
		zap.String("message", n.Message),
		zap.Bool("all_users", n.Audience.All()),
		zap.Strings("roles", roles),
		zap.Any("data", n.Data),
		zap.Bool("email", n.Email != nil),
	)
	return nil
}
