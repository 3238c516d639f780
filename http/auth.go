package http

import (
	"net/http"
	"slices"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	swebsocket "github.com/aukilabs/stagekit/websocket"
	"golang.org/x/net/websocket"
)

const ErrTypeUnauthorized = "unauthorized"

// VerifyAppKey returns a WebSocket handshake that rejects editors whose app
// key is not in appKeys. An empty appKeys accepts every editor.
func VerifyAppKey(appKeys []string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := verifyAppKey(appKeys, r); err != nil {
			logs.WithClientID(r.Header.Get(swebsocket.HeaderClientID)).Error(err)
			return err
		}

		return nil
	}
}

func VerifyAppKeyHandler(appKeys []string, next http.HandlerFunc) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := verifyAppKey(appKeys, r); err != nil {
			logs.WithClientID(r.Header.Get(swebsocket.HeaderClientID)).Error(err)
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func verifyAppKey(appKeys []string, r *http.Request) error {
	if len(appKeys) == 0 {
		return nil
	}

	appKey := r.Header.Get(swebsocket.HeaderAppKey)
	if !slices.Contains(appKeys, appKey) {
		return errors.New("app key not allowed").
			WithType(ErrTypeUnauthorized).
			WithTag("app_key", appKey)
	}
	return nil
}
