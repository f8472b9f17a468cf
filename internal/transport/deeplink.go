package transport

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
)

// DeepLink delivers messages by opening a whatsapp://send deep link
// through the platform opener, relying on an installed WhatsApp desktop
// client to take over from there.
type DeepLink struct {
	log zerolog.Logger
}

// NewDeepLink creates a deep-link transport
func NewDeepLink(log zerolog.Logger) *DeepLink {
	return &DeepLink{log: log.With().Str("component", "transport.deeplink").Logger()}
}

// Ready probes for a WhatsApp desktop installation. Without one the
// deep link would fall into a void, so a missing install is treated as
// the fatal precondition for a broadcast run.
func (d *DeepLink) Ready(ctx context.Context) error {
	if installed() {
		return nil
	}
	return fmt.Errorf("whatsapp desktop client not found on %s", runtime.GOOS)
}

// Send opens a whatsapp://send deep link for one recipient. Deep links
// cannot carry file attachments; a non-empty attachment reference is
// dropped with a warning.
func (d *DeepLink) Send(ctx context.Context, phone, message, attachment string) error {
	if attachment != "" {
		d.log.Warn().Str("phone", phone).Str("attachment", attachment).
			Msg("deep-link transport cannot attach files, sending text only")
	}

	link := fmt.Sprintf("whatsapp://send?phone=%s&text=%s", phone, url.QueryEscape(message))
	if err := openURL(ctx, link); err != nil {
		return fmt.Errorf("failed to open deep link: %w", err)
	}
	return nil
}

// openURL hands the deep link to the platform opener without waiting
// for the spawned process
func openURL(ctx context.Context, link string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/C", "start", link)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", link)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", link)
	}

	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// installed checks well-known install locations per platform, falling
// back to PATH lookup
func installed() bool {
	var candidates []string
	switch runtime.GOOS {
	case "windows":
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates,
				filepath.Join(home, "AppData", "Local", "WhatsApp", "WhatsApp.exe"),
				filepath.Join(home, "AppData", "Roaming", "WhatsApp", "WhatsApp.exe"),
			)
		}
		candidates = append(candidates,
			`C:\Program Files\WhatsApp\WhatsApp.exe`,
			`C:\Program Files (x86)\WhatsApp\WhatsApp.exe`,
		)
	case "darwin":
		candidates = append(candidates,
			"/Applications/WhatsApp.app",
			"/System/Applications/WhatsApp.app",
		)
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, "Applications", "WhatsApp.app"))
		}
	default:
		candidates = append(candidates,
			"/usr/bin/whatsapp-desktop",
			"/usr/local/bin/whatsapp-desktop",
			"/opt/WhatsApp/whatsapp-desktop",
			"/snap/bin/whatsapp-for-linux",
			"/usr/bin/whatsapp-for-linux",
		)
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, ".local", "bin", "whatsapp-desktop"))
		}
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}

	for _, bin := range []string{"whatsapp-desktop", "whatsapp-for-linux"} {
		if _, err := exec.LookPath(bin); err == nil {
			return true
		}
	}
	return false
}
