package main

import (
	"context"
	goflag "flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"

	"ciphercanvas/internal/config"
	"ciphercanvas/internal/server"
)

func (c *cli) runServe(args []string) error {
	cfg, err := c.serveConfig(args)
	if err != nil {
		return err
	}
	defer klog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, cfg)
}

// serveConfig parses the serve flags and layers them over the file and
// environment configuration.
func (c *cli) serveConfig(args []string) (*config.Config, error) {
	var opts ServeOptions
	fs := newFlagSet("serve")
	fs.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file")
	fs.StringVar(&opts.Addr, "addr", "", "Listen address")
	fs.IntVar(&opts.MaxUploadMB, "max-upload-mb", 0, "Upload limit in MB")
	fs.StringVar(&opts.OutputFormat, "output-format", "", "Stego image format: png, bmp or tiff")

	klogFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(klogFlags)
	fs.AddGoFlagSet(klogFlags)

	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if fs.Changed("addr") {
		cfg.Addr = opts.Addr
	}
	if fs.Changed("max-upload-mb") {
		cfg.MaxUploadMB = opts.MaxUploadMB
	}
	if fs.Changed("output-format") {
		cfg.OutputFormat = opts.OutputFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
