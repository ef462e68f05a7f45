package server

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// OpenBrowser opens rawURL in browser, or in the system default browser
// when browser is empty. It returns once the browser process has started.
func OpenBrowser(browser, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid browser URL %q", rawURL)
	}

	cmd, err := browserCommand(runtime.GOOS, browser, u.String())
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	go cmd.Wait()
	return nil
}

func browserCommand(goos, browser, target string) (*exec.Cmd, error) {
	if browser != "" {
		if goos == "darwin" {
			return exec.Command("open", "-a", browser, target), nil
		}
		return exec.Command(browser, target), nil
	}

	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.Command("xdg-open", target), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target), nil
	case "darwin":
		return exec.Command("open", target), nil
	default:
		return nil, fmt.Errorf("unsupported platform %s", goos)
	}
}
