package redirect

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultCallbackPath = "/callback"
	shutdownTimeout     = 5 * time.Second
)

// fragmentPage moves fragment parameters into the query so the server can
// read them.
const fragmentPage = `<!DOCTYPE html>
<html><head><title>Signing in</title></head>
<body>
<p>Completing sign-in...</p>
<script>
if (window.location.hash.length > 1) {
  window.location.replace(window.location.pathname + "?" + window.location.hash.substring(1));
} else {
  window.location.replace(window.location.pathname + "?error=access_denied&error_description=missing+callback+parameters");
}
</script>
</body></html>`

const donePage = `<!DOCTYPE html>
<html><head><title>Signed in</title></head>
<body><p>You can close this window and return to the application.</p></body></html>`

// Loopback receives the provider redirect on a local HTTP listener.
type Loopback struct {
	addr string
	path string
	open Opener

	mu        sync.Mutex
	boundAddr string
}

var _ Redirector = (*Loopback)(nil)

// LoopbackOption defines a function type to modify the Loopback instance.
type LoopbackOption func(*Loopback)

// WithOpener replaces the system browser
func WithOpener(open Opener) LoopbackOption {
	return func(l *Loopback) {
		l.open = open
	}
}

func WithCallbackPath(path string) LoopbackOption {
	return func(l *Loopback) {
		l.path = path
	}
}

func NewLoopback(addr string, options ...LoopbackOption) *Loopback {
	l := &Loopback{addr: addr, path: defaultCallbackPath, open: OpenBrowser}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// RedirectURL is the URL the provider must redirect to. While Authorize is
// listening it reflects the bound port.
func (l *Loopback) RedirectURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	addr := l.addr
	if l.boundAddr != "" {
		addr = l.boundAddr
	}
	return "http://" + addr + l.path
}

// Authorize opens authURL and waits for the first callback request.
func (l *Loopback) Authorize(ctx context.Context, authURL string) (*Callback, error) {
	listener, err := net.Listen("tcp", l.addr)
	if err != nil {
		return nil, errors.Wrapf(err, "[Loopback.Authorize] listen on %s", l.addr)
	}

	l.mu.Lock()
	l.boundAddr = listener.Addr().String()
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.boundAddr = ""
		l.mu.Unlock()
	}()

	results := make(chan *Callback, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(l.path, chainMiddleware(l.callbackHandler(results), recoverMiddleware, loggingMiddleware, noStoreMiddleware))

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Err(err).Str("addr", listener.Addr().String()).Msg("loopback listener stopped")
		}
	}()
	defer shutdown(server)

	if err := l.open(authURL); err != nil {
		return nil, errors.Wrap(err, "[Loopback.Authorize] open browser")
	}
	log.Info().Str("redirect_url", l.RedirectURL()).Msg("waiting for sign-in callback")

	select {
	case cb := <-results:
		return cb, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loopback) callbackHandler(results chan<- *Callback) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		values := r.URL.Query()
		if !hasCallbackParams(values) {
			// Tokens may be in the fragment, which never reaches the server
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(fragmentPage))
			return
		}

		select {
		case results <- fromValues(values):
		default:
			// a callback was already accepted
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(donePage))
	}
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Err(err).Msg("loopback shutdown")
	}
}
