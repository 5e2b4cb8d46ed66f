package app

import (
	"log/slog"

	"marquee/internal/notify"
)

// NotifyConfig selects where customer notifications and operator alerts go.
type NotifyConfig struct {
	Brokers           []string
	NotificationTopic string
	AlertTopic        string
}

// Senders holds the notification sender used by SendEmailNotification and
// the alert sender used when tasks are aborted.
type Senders struct {
	Notifications notify.Sender
	Alerts        notify.Sender
}

// NewSenders publishes to Kafka when brokers are configured and logs
// otherwise. Alerts also reach every connected broadcaster.
func NewSenders(cfg NotifyConfig, logger *slog.Logger, broadcasters ...notify.Broadcaster) (Senders, func()) {
	if logger == nil {
		logger = slog.Default()
	}

	var notifications, alerts notify.Sender
	cleanup := func() {}
	if len(cfg.Brokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, notifications are logged only")
		notifications = notify.NewLogSender(logger)
		alerts = notifications
	} else {
		writer := notify.NewWriter(cfg.Brokers)
		notifications = notify.NewKafkaSender(writer, cfg.NotificationTopic)
		alerts = notify.NewKafkaSender(writer, cfg.AlertTopic)
		cleanup = func() {
			if err := writer.Close(); err != nil {
				logger.Error("close kafka writer", "err", err)
			}
		}
	}

	fanout := []notify.Sender{alerts}
	for _, b := range broadcasters {
		if b != nil {
			fanout = append(fanout, notify.NewBroadcastSender(b))
		}
	}
	if len(fanout) > 1 {
		alerts = notify.NewFanout(fanout...)
	}
	return Senders{Notifications: notifications, Alerts: alerts}, cleanup
}
