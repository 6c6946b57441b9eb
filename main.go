package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mmv/cmd"
	"mmv/internal/config"
	"mmv/internal/encoder"
	"mmv/internal/engine"
	applog "mmv/internal/log"
	"mmv/internal/pipe"
	"mmv/internal/session"
	"mmv/internal/source"
	"mmv/internal/transport"
	"mmv/internal/transport/udp"
	"mmv/pkg/build"
)

// main wires the pipeline in three phases: parse and load
// configuration, build the mode-specific pipeline (render or live),
// then run it under signal-driven cancellation.
func main() {
	build.Initialize()

	options, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("parsing arguments: %v", err)
	}
	if options.Command == "" {
		return
	}

	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		applog.Fatalf("loading configuration: %v", err)
	}
	options.Apply(cfg)
	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}

	ctx, cancel := signalContext()
	defer cancel()

	switch options.Command {
	case "list":
		err = runList()
	case "render":
		err = runRender(ctx, cfg, options)
	case "live":
		err = runLive(ctx, cfg, options)
	default:
		err = fmt.Errorf("unknown command %q", options.Command)
	}
	if err != nil && err != context.Canceled {
		applog.Fatalf("%v", err)
	}
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-done
		applog.Infof("shutdown requested")
		cancel()
	}()
	return ctx, cancel
}

func runList() error {
	if err := source.Initialize(); err != nil {
		return err
	}
	defer source.Terminate()
	return source.ListDevices()
}

// runRender decodes the input file, starts ffmpeg and renders every
// frame through the frame pipe.
func runRender(ctx context.Context, cfg *config.Config, options *cmd.Options) error {
	src := source.NewFileSource(cfg.Video.FPS)

	renderer, err := engine.NewBarRenderer(cfg.Video.Width, cfg.Video.Height)
	if err != nil {
		return err
	}
	eng, err := engine.New(cfg, src, renderer)
	if err != nil {
		return err
	}

	// Engine.New ran src.Configure, so the file can be decoded now.
	if err := src.Load(options.Input); err != nil {
		return err
	}
	total := src.TotalSteps()
	if total == 0 {
		return fmt.Errorf("input %s is empty", options.Input)
	}

	enc := encoder.New(encoder.Settings{
		Binary:    cfg.Encoder.Binary,
		Width:     cfg.Video.Width,
		Height:    cfg.Video.Height,
		Framerate: cfg.Video.FPS,
		AudioPath: options.Input,
		Output:    options.Output,
		Preset:    cfg.Encoder.Preset,
		Tune:      cfg.Encoder.Tune,
		CRF:       cfg.Encoder.CRF,
		VFlip:     cfg.Encoder.VFlip,
	})
	stdin, err := enc.Start()
	if err != nil {
		return err
	}
	eng.AttachPipe(pipe.NewWriter(stdin))

	var record *session.Record
	if cfg.Session.Enabled {
		record = session.New(options.Output, cfg.Video.Width, cfg.Video.Height, cfg.Video.FPS)
		record.AudioFile = options.Input
		eng.AttachSession(record)
	}

	if err := eng.RunRender(ctx, total); err != nil {
		enc.Wait()
		return err
	}
	if err := enc.Wait(); err != nil {
		return err
	}

	if record != nil {
		path := cfg.Session.Path
		if path == "" {
			path = strings.TrimSuffix(options.Output, ".mkv") + ".yaml"
		}
		if err := record.Save(path); err != nil {
			applog.Warnf("saving session record: %v", err)
		} else {
			applog.Infof("session record written to %s", path)
		}
	}

	applog.Infof("render complete: %s", options.Output)
	return nil
}

// runLive captures from a device and streams features to the enabled
// transports until interrupted.
func runLive(ctx context.Context, cfg *config.Config, options *cmd.Options) error {
	if err := source.Initialize(); err != nil {
		return err
	}
	defer source.Terminate()

	deviceID := options.Device
	if deviceID == source.DefaultDeviceID && cfg.Audio.InputDevice != source.DefaultDeviceID {
		deviceID = cfg.Audio.InputDevice
	}
	src := source.NewRealtimeSource(deviceID)

	renderer, err := engine.NewBarRenderer(cfg.Video.Width, cfg.Video.Height)
	if err != nil {
		return err
	}
	eng, err := engine.New(cfg, src, renderer)
	if err != nil {
		return err
	}

	var transports []transport.Transport
	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr)
		transports = append(transports, ws)
		eng.AttachTransport(ws)
	}
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		defer sender.Close()

		publisher, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, eng.Provider())
		if err != nil {
			return err
		}
		publisher.Start()
		defer publisher.Stop()
	}
	if len(transports) == 0 && !cfg.Transport.UDPEnabled {
		applog.Warnf("no transports enabled, running analysis only")
	}
	defer func() {
		for _, t := range transports {
			t.Close()
		}
	}()

	if options.Record != "" {
		if err := src.StartRecording(options.Record); err != nil {
			return err
		}
		defer func() {
			if err := src.StopRecording(); err != nil {
				applog.Warnf("stopping recording: %v", err)
			} else {
				applog.Infof("recording saved to %s", options.Record)
			}
		}()
	}

	return eng.RunLive(ctx)
}
