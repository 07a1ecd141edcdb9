package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prasenjit/go-mockapi/internal/api"
	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/config"
	"github.com/prasenjit/go-mockapi/internal/datastore"
	"github.com/prasenjit/go-mockapi/internal/monitor"
	"github.com/prasenjit/go-mockapi/internal/tlsutil"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [api-file]",
	Short: "Start the mock server",
	Long: `Starts the mock server for an API document.

The server will:
  - Load the API document (api.file, or the argument)
  - Reload it whenever the file changes, unless --watch=false
  - Mock every declared operation
  - Expose the Admin API at /_api/

Configuration is loaded from config.yaml in the current directory,
or specify a custom config file with the --config flag.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "Override server port")
	serveCmd.Flags().Bool("tls", false, "Enable TLS (HTTP and HTTPS on the same port)")
	serveCmd.Flags().Bool("watch", true, "Reload the API document when it changes")
	serveCmd.Flags().String("storage", "", "Resource storage: memory or file")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.tls.enabled", serveCmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("api.watch", serveCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("storage.type", serveCmd.Flags().Lookup("storage"))
}

func runServe(_ *cobra.Command, args []string) error {
	if len(args) == 1 {
		viper.Set("api.file", args[0])
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handle := apidoc.NewHandle(cfg.API.File, logger)
	// A document that fails to load is kept as the current error; the
	// server answers 500 until the file is fixed.
	handle.Reload(ctx)
	if cfg.API.Watch {
		go func() {
			if err := apidoc.Watch(ctx, handle, cfg.API.Debounce); err != nil {
				logger.Error("document watcher stopped", "error", err)
			}
		}()
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}()

	mon := monitor.New(monitor.Options{
		Tracing:     cfg.Tracing.Enabled,
		MaxTraces:   cfg.Tracing.MaxTraces,
		MaxBodySize: cfg.Tracing.MaxBodySize,
	})

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Options{
		Handle:    handle,
		Routing:   cfg.Routing,
		Store:     store,
		Monitor:   mon,
		Logger:    logger,
		AccessLog: true,
	})

	server := &http.Server{
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 2)
	addr := cfg.Server.Addr()
	if cfg.Server.TLS.Enabled {
		err = startTLSServer(server, addr, cfg, logger, errc)
	} else {
		err = startHTTPServer(server, addr, logger, errc)
	}
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (datastore.Store, error) {
	if cfg.Storage.Type != config.StorageFile {
		logger.Info("using in-memory resource store")
		return datastore.NewMemoryStore(), nil
	}
	path, err := filepath.Abs(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}
	store, err := datastore.NewFileStore(filepath.Join(path, "resources"))
	if err != nil {
		return nil, fmt.Errorf("initialize file storage: %w", err)
	}
	logger.Info("using file resource store", "path", path)
	return store, nil
}

// startHTTPServer starts a plain HTTP server
func startHTTPServer(server *http.Server, addr string, logger *slog.Logger, errc chan<- error) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	logger.Info("mock server listening", "addr", listener.Addr().String(), "admin", api.AdminPrefix)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	return nil
}

// startTLSServer serves HTTP and HTTPS on the same port. Shutting down
// server closes both.
func startTLSServer(server *http.Server, addr string, cfg *config.Config, logger *slog.Logger, errc chan<- error) error {
	src := tlsutil.Source{
		CertFile: cfg.Server.TLS.CertFile,
		KeyFile:  cfg.Server.TLS.KeyFile,
		Dir:      cfg.CertDir(),
		Generate: cfg.Server.TLS.AutoGenerate,
	}
	if cfg.Server.Host != "" && cfg.Server.Host != "0.0.0.0" {
		src.Hosts = []string{cfg.Server.Host}
	}
	cert, err := src.Load(logger)
	if err != nil {
		return fmt.Errorf("TLS certificate: %w", err)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	split := tlsutil.NewSplit(listener, tlsutil.ServerConfig(cert))
	server.RegisterOnShutdown(func() { split.Close() })

	logger.Info("mock server listening", "addr", split.Addr().String(), "tls", true, "admin", api.AdminPrefix)
	for _, l := range []net.Listener{split.Secure(), split.Plain()} {
		go func(l net.Listener) {
			if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}(l)
	}
	return nil
}
