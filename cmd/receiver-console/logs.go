package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/log/level"
	"github.com/rivo/tview"
)

// LogMessage represents a single log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
}

// LogManager keeps recent log lines and shows them in a panel.
// It implements the go-kit log.Logger interface so the receiver can log
// straight into the console.
type LogManager struct {
	textView    *tview.TextView
	messages    []LogMessage
	maxMessages int
	mu          sync.Mutex

	// redraw is called after the panel text changes; nil until the app runs
	redraw func()
	now    func() time.Time
}

// NewLogManager creates a new log manager
func NewLogManager(maxMessages int) *LogManager {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(maxMessages)
	textView.SetBorder(true).SetTitle(" Logs ")

	return &LogManager{
		textView:    textView,
		messages:    make([]LogMessage, 0, maxMessages),
		maxMessages: maxMessages,
		now:         time.Now,
	}
}

// GetView returns the tview component
func (lm *LogManager) GetView() tview.Primitive {
	return lm.textView
}

// Log implements log.Logger. The "level" and "msg" keys become the level
// column and message; other pairs are appended as key=value.
func (lm *LogManager) Log(keyvals ...interface{}) error {
	lm.add(formatKeyvals(keyvals...))
	return nil
}

// formatKeyvals turns go-kit key/value pairs into a log message.
func formatKeyvals(keyvals ...interface{}) LogMessage {
	msg := LogMessage{Level: level.InfoValue().String()}

	var fields []string
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		var val interface{} = "(MISSING)"
		if i+1 < len(keyvals) {
			val = keyvals[i+1]
		}

		switch key {
		case "level":
			msg.Level = fmt.Sprint(val)
		case "msg":
			msg.Message = fmt.Sprint(val)
		case "ts", "caller":
		default:
			fields = append(fields, fmt.Sprintf("%s=%v", key, val))
		}
	}

	if len(fields) > 0 {
		if msg.Message != "" {
			msg.Message += " "
		}
		msg.Message += strings.Join(fields, " ")
	}
	return msg
}

func (lm *LogManager) add(msg LogMessage) {
	lm.mu.Lock()
	msg.Time = lm.now()
	lm.messages = append(lm.messages, msg)
	if len(lm.messages) > lm.maxMessages {
		lm.messages = lm.messages[len(lm.messages)-lm.maxMessages:]
	}
	text := lm.render()
	redraw := lm.redraw
	lm.mu.Unlock()

	lm.textView.SetText(text)
	lm.textView.ScrollToEnd()
	if redraw != nil {
		redraw()
	}
}

// Messages returns a copy of the retained messages.
func (lm *LogManager) Messages() []LogMessage {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	out := make([]LogMessage, len(lm.messages))
	copy(out, lm.messages)
	return out
}

// SetRedraw installs the callback used once the application is running.
func (lm *LogManager) SetRedraw(fn func()) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.redraw = fn
}

// render formats messages as "HH:MM:SS LEVEL message" with tview colors.
func (lm *LogManager) render() string {
	var b strings.Builder
	for _, msg := range lm.messages {
		fmt.Fprintf(&b, "[gray]%s[-] [%s]%-5s[-] %s\n",
			msg.Time.Format("15:04:05"),
			colorForLevel(msg.Level),
			strings.ToUpper(msg.Level),
			tview.Escape(msg.Message))
	}
	return b.String()
}

// colorForLevel returns the tview color tag for a log level
func colorForLevel(lvl string) string {
	switch lvl {
	case level.DebugValue().String():
		return "gray"
	case level.WarnValue().String():
		return "yellow"
	case level.ErrorValue().String():
		return "red"
	default:
		return "white"
	}
}

// Clear removes all log messages
func (lm *LogManager) Clear() {
	lm.mu.Lock()
	lm.messages = make([]LogMessage, 0, lm.maxMessages)
	lm.mu.Unlock()
	lm.textView.Clear()
}
