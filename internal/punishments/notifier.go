package punishments

import (
	log "github.com/sirupsen/logrus"
)

// LogNotifier is the standalone-daemon notifier: side effects are
// logged and surfaced through player status queries instead of being
// pushed to a live session.
type LogNotifier struct {
	logger *log.Entry
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: log.WithField("object", "Notifier")}
}

func (n *LogNotifier) NotifyPlayer(player, message string) {
	n.logger.WithField("player", player).Info(message)
}

func (n *LogNotifier) DisconnectPlayer(player, reason string) {
	n.logger.WithField("player", player).WithField("reason", reason).Info("player disconnect requested")
}

func (n *LogNotifier) NotifyStaff(message string) {
	n.logger.Info(message)
}
