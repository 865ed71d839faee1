package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
)

// Notification types accepted by NewNotifier
const (
	NotifyTerminal = "terminal"
	NotifyDesktop  = "desktop"
	NotifyNone     = "none"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("civitdl").Show($toast)
	`, xmlEscape(title), xmlEscape(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// Notifier prints run notifications and optionally raises a desktop one
type Notifier struct {
	out    io.Writer
	sender NotificationSender
}

// NewNotifier creates a Notifier for the given type. "none" returns nil so
// callers can skip notifications entirely.
func NewNotifier(kind string, out io.Writer) *Notifier {
	switch strings.ToLower(kind) {
	case NotifyNone:
		return nil
	case NotifyDesktop:
		return &Notifier{out: out, sender: platformSender()}
	default:
		return &Notifier{out: out}
	}
}

// NewNotifierWithSender creates a Notifier with an explicit sender
func NewNotifierWithSender(out io.Writer, sender NotificationSender) *Notifier {
	return &Notifier{out: out, sender: sender}
}

func platformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// SendNotification prints to the console and sends a desktop notification if configured
func (n *Notifier) SendNotification(title, message string) {
	if n == nil {
		return
	}
	if n.out != nil && !IsQuietMode() {
		fmt.Fprintf(n.out, "\n%s: %s\n", Cyan(title), Yellow(message))
	}

	if n.sender != nil {
		// best effort
		_ = n.sender.Send(title, message)
	}
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
