// Package notify handles notifications to the user.
//
// This is the interface boundary with the excluded delivery layer: the
// scheduler hands finished nudges to a Notifier and nothing more.
package notify

import (
	"fmt"
	"log"
	"os/exec"
	"time"
)

// Notifier delivers one intervention to the user.
type Notifier interface {
	Send(title, body string, urgency Urgency) error
}

// Urgency levels for desktop notifications.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
)

// expireAfter caps how long a notification lingers on screen. Nudges
// and check-ins are about the current moment; a stale one is noise.
func expireAfter(urgency Urgency) time.Duration {
	if urgency == UrgencyLow {
		return 10 * time.Second
	}
	return 30 * time.Second
}

// notifyArgs builds the notify-send argument list for one notification.
func notifyArgs(appName, title, body string, urgency Urgency) []string {
	return []string{
		"--app-name=" + appName,
		"--urgency=" + string(urgency),
		fmt.Sprintf("--expire-time=%d", expireAfter(urgency).Milliseconds()),
		"--icon=dialog-information",
		title,
		body,
	}
}

// DesktopNotifier sends desktop notifications via notify-send.
type DesktopNotifier struct {
	appName string
}

// NewDesktopNotifier creates a new desktop notifier.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{
		appName: "Attune",
	}
}

// Available checks if notify-send is available.
func (n *DesktopNotifier) Available() bool {
	_, err := exec.LookPath("notify-send")
	return err == nil
}

// Send sends a desktop notification. It expires on its own after an
// urgency-dependent interval.
func (n *DesktopNotifier) Send(title, body string, urgency Urgency) error {
	if !n.Available() {
		return nil // Silently skip if not available
	}

	cmd := exec.Command("notify-send", notifyArgs(n.appName, title, body, urgency)...)
	return cmd.Run()
}

// LogNotifier writes notifications to the process log. Used when no
// desktop notification path exists, and in tests.
type LogNotifier struct{}

// Send logs the notification.
func (LogNotifier) Send(title, body string, urgency Urgency) error {
	log.Printf("[notify] (%s) %s: %s", urgency, title, body)
	return nil
}
