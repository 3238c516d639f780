package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ShutdownTimeout is how long servers get to drain their open editor
// connections once the serving context is done.
var ShutdownTimeout = time.Second * 10

// ListenAndServe serves all the given servers until ctx is done, then shuts
// them down and waits for them to return.
func ListenAndServe(ctx context.Context, servers ...*http.Server) {
	var wg sync.WaitGroup

	for _, s := range servers {
		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()
			serve(s)
		}(s)
	}

	go func() {
		<-ctx.Done()
		shutdown(servers)
	}()

	wg.Wait()
}

func serve(s *http.Server) {
	logger := logs.WithTag("addr", s.Addr)
	logger.Info("starting server")

	err := s.ListenAndServe()
	if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		logger.Info("stopping server")
		return
	}

	logs.Warn(errors.New("server stopped").
		WithTag("addr", s.Addr).
		Wrap(err))
}

func shutdown(servers []*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	for _, s := range servers {
		if err := s.Shutdown(ctx); err != nil {
			logs.Warn(errors.New("shutting down the server failed").
				WithTag("addr", s.Addr).
				WithTag("timeout", ShutdownTimeout).
				Wrap(err))
		}
	}
}

// MetricsPathFormatter keeps metric path labels bounded. Requests that were
// redirected, rejected or routed nowhere are not labeled and profiling paths
// are collapsed into one.
func MetricsPathFormatter(statusCode int, path string) string {
	switch statusCode {
	case http.StatusMovedPermanently,
		http.StatusBadRequest,
		http.StatusNotFound,
		http.StatusMethodNotAllowed:
		return ""
	}

	if strings.HasPrefix(path, "/debug/pprof") {
		return "/debug/pprof"
	}
	return path
}
