// Package cmd parses the command line into run options. The actual
// wiring of sources, engine and outputs happens in main.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"mmv/internal/config"
	"mmv/internal/source"
	"mmv/pkg/build"
)

// Options is the parsed command line: which mode to run plus the flag
// overrides applied on top of the config file.
type Options struct {
	Command    string // "render", "live", "list" or "" (help shown)
	ConfigPath string

	// render
	Input  string
	Output string

	// live
	Device int
	Record string

	// shared overrides, zero means keep config value
	Width  int
	Height int
	FPS    int
}

// ParseArgs builds and executes the CLI.
func ParseArgs() (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Audio-reactive music visualizer",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVar(&options.ConfigPath, "config", "",
		"Path to config.yaml (default: search working directory)")
	rootCmd.PersistentFlags().IntVar(&options.Width, "width", 0,
		"Output width in pixels (overrides config)")
	rootCmd.PersistentFlags().IntVar(&options.Height, "height", 0,
		"Output height in pixels (overrides config)")
	rootCmd.PersistentFlags().IntVar(&options.FPS, "fps", 0,
		"Frames per second (overrides config)")

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Render an audio file to a video",
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = "render"
			return nil
		},
	}
	renderCmd.Flags().StringVarP(&options.Input, "input", "i", "",
		"Audio file to visualize")
	renderCmd.Flags().StringVarP(&options.Output, "output", "o", "output.mkv",
		"Video file to write")
	renderCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(renderCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Visualize a capture device in real time",
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = "live"
			return nil
		},
	}
	liveCmd.Flags().IntVarP(&options.Device, "device", "d", source.DefaultDeviceID,
		"Input device ID, see the 'list' command")
	liveCmd.Flags().StringVarP(&options.Record, "record", "r", "",
		"Also record captured audio to this WAV file")
	rootCmd.AddCommand(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// Apply folds flag overrides into the loaded configuration.
func (o *Options) Apply(cfg *config.Config) {
	if o.Width > 0 {
		cfg.Video.Width = o.Width
	}
	if o.Height > 0 {
		cfg.Video.Height = o.Height
	}
	if o.FPS > 0 {
		cfg.Video.FPS = o.FPS
	}
}
