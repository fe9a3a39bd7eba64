package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// loopbackFlow runs the OAuth2 authorization code flow for installed apps.
// It listens on a random localhost port, prints the consent URL, waits for
// the redirect and exchanges the code.
func (s *Store) loopbackFlow(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("starting local listener: %w", err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", port)

	state := uuid.NewString()

	type authResult struct {
		code string
		err  error
	}
	resultCh := make(chan authResult, 1)
	send := func(r authResult) {
		select {
		case resultCh <- r:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", callbackHandler(state, func(code string, err error) {
		send(authResult{code: code, err: err})
	}))

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			send(authResult{err: fmt.Errorf("callback server error: %w", err)})
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(s.prompt, "\nOpen this URL in your browser to authorize Google Drive access:\n\n%s\n\nWaiting for authorization...\n", authURL)

	select {
	case result := <-resultCh:
		if result.err != nil {
			return nil, result.err
		}
		token, err := cfg.Exchange(ctx, result.code)
		if err != nil {
			return nil, fmt.Errorf("exchanging auth code for token: %w", err)
		}
		fmt.Fprintln(s.prompt, "Authorization successful.")
		return token, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// callbackHandler validates the redirect and reports the code or error.
func callbackHandler(state string, report func(code string, err error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errMsg := q.Get("error"); errMsg != "" {
			report("", fmt.Errorf("oauth error: %s", errMsg))
			fmt.Fprintf(w, "Authorization failed: %s. You can close this tab.", errMsg)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "State mismatch. Restart the authorization.", http.StatusBadRequest)
			report("", errors.New("oauth state mismatch"))
			return
		}
		code := q.Get("code")
		if code == "" {
			report("", errors.New("no authorization code received"))
			fmt.Fprint(w, "No authorization code received. You can close this tab.")
			return
		}
		report(code, nil)
		fmt.Fprint(w, "Authorization successful! You can close this tab.")
	}
}
