// glyphscan server - recognizes captured screens and streams text over HTTP, WebSocket and gRPC
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GriffinCanCode/glyphscan/internal/config"
	"github.com/GriffinCanCode/glyphscan/internal/glyph"
	"github.com/GriffinCanCode/glyphscan/internal/grpcclient"
	"github.com/GriffinCanCode/glyphscan/internal/orchestrator"
	orchscreen "github.com/GriffinCanCode/glyphscan/internal/orchestrator/screen"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
	"github.com/GriffinCanCode/glyphscan/internal/rpc"
	"github.com/GriffinCanCode/glyphscan/internal/screen"
	"github.com/GriffinCanCode/glyphscan/internal/server"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec, closeRec, err := openRecognizer(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up recognizer", "mode", cfg.RecognizerMode, "error", err)
		os.Exit(1)
	}
	defer closeRec()

	capturer, err := screen.Open(cfg.FrameSource, cfg.FramePattern, cfg.CaptureCommand)
	switch {
	case err == nil:
	case cfg.FrameSource == "" && errors.Is(err, screen.ErrSource):
		capturer = nil
	default:
		slog.Error("failed to open frame source", "source", cfg.FrameSource, "error", err)
		os.Exit(1)
	}

	mgr := orchestrator.New(cfg, rec, capturer)
	if err := mgr.Start(ctx); err != nil {
		slog.Error("orchestrator error", "error", err)
		os.Exit(1)
	}

	srv := server.New(ctx, mgr)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
	}
	go func() {
		slog.Info("http server starting", "addr", cfg.HTTPAddr, "mode", cfg.RecognizerMode, "source", cfg.FrameSource)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	// A remote-mode process forwards to another recognizer and does not
	// serve one itself.
	var grpcServer *rpc.Server
	if cfg.RecognizerMode == config.ModeLocal {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			slog.Error("failed to listen", "addr", cfg.GRPCAddr, "error", err)
			os.Exit(1)
		}
		grpcServer = rpc.NewServer(mgr)
		go func() {
			slog.Info("grpc server starting", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				slog.Error("grpc server error", "error", err)
				cancel()
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	if grpcServer != nil {
		grpcServer.Shutdown()
	}
	mgr.Stop()
	slog.Info("shutdown complete")
}

// openRecognizer builds the in-process recognizer or a client for a remote
// one, according to RECOGNIZER_MODE.
func openRecognizer(ctx context.Context, cfg *config.Config) (orchscreen.Recognizer, func(), error) {
	if cfg.RecognizerMode == config.ModeRemote {
		client, err := grpcclient.New(cfg.RecognizerAddr, grpcclient.DefaultConfig())
		if err != nil {
			return nil, nil, err
		}
		go client.RunHealthCheck(ctx)
		slog.Info("using remote recognizer", "addr", cfg.RecognizerAddr)
		return client, func() { _ = client.Close() }, nil
	}

	dict, err := glyph.LoadManifest(cfg.DictionaryPath)
	if err != nil {
		return nil, nil, err
	}
	rec, err := recognize.New(dict, cfg.RecognizeOptions())
	if err != nil {
		return nil, nil, err
	}
	slog.Info("dictionary loaded", "path", cfg.DictionaryPath, "glyphs", dict.Len(), "height", dict.Height())
	return rec, func() {}, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
