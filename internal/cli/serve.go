package cli

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ccsr-gis/watershed3d/pkg/errors"
	"github.com/ccsr-gis/watershed3d/pkg/pipeline"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr       string
	noCache    bool
	configPath string
}

// serveCommand creates the serve command: a local HTTP viewer that rebuilds
// the scene on every request, so reloading the browser after a layer or
// scale change is the whole interaction model.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive scene over HTTP",
		Long: `Serve starts a local HTTP viewer.

GET /            renders the scene; ?layer= picks the overlay and ?scale=
                 the vertical exaggeration (e.g. /?layer=nlcd&scale=2)
GET /healthz     liveness probe`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "skip the alignment cache")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default watershed3d.toml)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, cfg, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	addr := opts.addr
	if addr == "" {
		addr = cfg.Serve.Addr
	}

	viewer := &viewerServer{
		cfg:    cfg,
		runner: runner,
		logger: c.Logger,
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           viewer.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	c.Logger.Info("viewer listening", "addr", addr)
	printInfo("Open http://localhost%s/ (layers: %v)", addrSuffix(addr), cfg.LayerNames())

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

// addrSuffix normalizes a listen address for display: ":8080" stays as is,
// "0.0.0.0:8080" becomes ":8080".
func addrSuffix(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i:]
		}
	}
	return addr
}

// viewerServer rebuilds and serves the scene per request. A single mutex
// serializes builds: the scene path is deliberately single-threaded, and a
// browser reload loop should queue, not pile up.
type viewerServer struct {
	cfg    Config
	runner *pipeline.Runner
	logger *log.Logger

	mu sync.Mutex
}

func (s *viewerServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Get("/", s.handleScene)
	r.Get("/healthz", s.handleHealthz)
	return r
}

// requestID tags every request with a correlation id, echoed in the
// response header and attached to the request logger.
func (s *viewerServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		ctx := withLogger(r.Context(), s.logger.With("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *viewerServer) handleScene(w http.ResponseWriter, r *http.Request) {
	logger := loggerFromContext(r.Context())

	layerName := r.URL.Query().Get("layer")
	layer, err := s.cfg.Layer(layerName)
	if err != nil {
		s.writeError(w, logger, err)
		return
	}

	scaleZ := pipeline.DefaultScaleZ
	if raw := r.URL.Query().Get("scale"); raw != "" {
		scaleZ, err = strconv.ParseFloat(raw, 64)
		if err != nil || scaleZ <= 0 {
			s.writeError(w, logger, errors.New(errors.ErrCodeInvalidScale, "scale must be a positive number, got %q", raw))
			return
		}
	}

	opts := pipelineOptions(s.cfg, layer, scaleZ, false)
	opts.Formats = []string{pipeline.FormatHTML}
	opts.Logger = logger

	p := newProgress(logger)
	s.mu.Lock()
	result, err := s.runner.Execute(r.Context(), opts)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, logger, err)
		return
	}
	p.done(fmt.Sprintf("built %s scene", layer.Name))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(result.Artifacts[pipeline.FormatHTML])
}

func (s *viewerServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// writeError maps coded errors onto HTTP statuses.
func (s *viewerServer) writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidLayer, errors.ErrCodeInvalidScale, errors.ErrCodeInvalidFormat:
		status = http.StatusBadRequest
	case errors.ErrCodeFileNotFound:
		status = http.StatusNotFound
	}
	logger.Error("scene build failed", "status", status, "err", err)
	http.Error(w, errors.UserMessage(err), status)
}
