package redirect

import (
	"context"

	"github.com/pkg/browser"
)

// Redirector sends the user to authURL and blocks until the provider
// redirects back, or ctx ends.
type Redirector interface {
	Authorize(ctx context.Context, authURL string) (*Callback, error)
}

// Opener shows a URL to the user.
type Opener func(url string) error

// OpenBrowser opens url in the system browser.
func OpenBrowser(url string) error {
	return browser.OpenURL(url)
}
