package logging

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Notice is a warning or error surfaced to the user.
type Notice struct {
	Level   log.Level
	Message string
	Time    time.Time
}

// NoticeHook forwards warn and error entries to a channel the TUI drains.
type NoticeHook struct {
	ch chan<- Notice
}

func NewNoticeHook(ch chan<- Notice) *NoticeHook {
	return &NoticeHook{ch: ch}
}

func (h *NoticeHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel}
}

func (h *NoticeHook) Fire(entry *log.Entry) error {
	msg := entry.Message
	if err, ok := entry.Data[log.ErrorKey]; ok {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	select {
	case h.ch <- Notice{Level: entry.Level, Message: msg, Time: entry.Time}:
	default:
		// Buffer full; the entry is still in the log file.
	}
	return nil
}
