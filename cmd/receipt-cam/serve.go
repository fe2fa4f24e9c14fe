package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/peterbourgon/ff/v4"
	"go.uber.org/multierr"

	"github.com/zombor/receipt-cam/internal/camera"
	"github.com/zombor/receipt-cam/internal/capture"
	"github.com/zombor/receipt-cam/internal/receipt"
)

func newServeCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(root.flags)
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "receipt-cam.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./receipts", "Storage directory path")
		device        = fs.StringLong("device", "0", "Camera device index, file or stream URL")
		width         = fs.IntLong("width", 1280, "Requested capture width")
		height        = fs.IntLong("height", 720, "Requested capture height")
		displayWidth  = fs.IntLong("display-width", 640, "Preview width")
		displayHeight = fs.IntLong("display-height", 480, "Preview height")
		noCamera      = fs.BoolLong("no-camera", "Run without a capture device; only uploads can be analyzed")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
	)

	return &ff.Command{
		Name:      "serve",
		Usage:     "receipt-cam serve [FLAGS]",
		ShortHelp: "run the capture pipeline and web UI",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			return serve(ctx, root, serveOptions{
				addr:        fmt.Sprintf(":%d", *port),
				dbPath:      *dbPath,
				storagePath: *storagePath,
				device:      *device,
				captureSize: image.Pt(*width, *height),
				displaySize: image.Pt(*displayWidth, *displayHeight),
				noCamera:    *noCamera,
				auth:        receipt.BasicAuth{Username: *authUser, Password: *authPass},
			})
		},
	}
}

type serveOptions struct {
	addr        string
	dbPath      string
	storagePath string
	device      string
	captureSize image.Point
	displaySize image.Point
	noCamera    bool
	auth        receipt.BasicAuth
}

func serve(ctx context.Context, root *rootConfig, opts serveOptions) (err error) {
	store, err := root.loadCorrections()
	if err != nil {
		return err
	}

	scanner, err := root.newScanner(store)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, scanner.Close()) }()

	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(opts.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	slog.Info("Initializing storage...")
	storage, err := receipt.NewLocalStorage(opts.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	var dev capture.Device
	if !opts.noCamera {
		slog.Info("Opening camera...", "device", opts.device, "size", opts.captureSize)
		webcam, err := camera.Open(opts.device, opts.captureSize.X, opts.captureSize.Y)
		if err != nil {
			return err
		}
		dev = webcam
	}

	pipeline := capture.NewPipeline(dev, scanner, capture.PipelineConfig{
		DisplaySize: opts.displaySize,
		Timeout:     *root.timeout,
	})
	if err := pipeline.Start(ctx); err != nil {
		return multierr.Append(fmt.Errorf("starting capture: %w", err), pipeline.Close())
	}
	defer func() { err = multierr.Append(err, pipeline.Close()) }()

	service := receipt.NewService(db, storage, store)
	server := receipt.NewServer(service, pipeline, store, opts.auth)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(opts.addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", opts.addr))
	if opts.auth.Username != "" || opts.auth.Password != "" {
		slog.Info("Basic auth enabled", "user", opts.auth.Username)
	}

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
