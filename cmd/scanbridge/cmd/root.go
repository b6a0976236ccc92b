package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/scanbridge/internal/config"
	"github.com/MeKo-Tech/scanbridge/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scanbridge",
	Short: "Barcode scanner bridge for scanning and encoding barcodes",
	Long: `scanbridge forwards barcode scan, cancel and encode requests to a native
scanner, either in-process or on a remote scanbridge server.

This tool provides:
- Scanning from image, directory or PDF frame sources
- Cancelling a running scan
- Rendering QR codes and 1D barcodes as PNG
- Decoding barcodes from image and PDF files
- An HTTP and WebSocket server hosting the native scanner

Examples:
  scanbridge scan --camera ./frames
  scanbridge scan --remote ws://scanner:8080/ws --timeout 30s
  scanbridge encode TEXT_TYPE "hello" -o hello.png
  scanbridge serve --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, err := fmt.Fprint(cmd.OutOrStdout(), version.String())
			return err
		}
		// If no version flag, show help
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Initialize configuration loader
	cobra.OnInitialize(initConfig)

	// Global flags that apply to all commands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/scanbridge, /etc/scanbridge)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("remote", "",
		"ws:// or wss:// URL of a scanbridge server; empty uses the in-process scanner")

	// Version flag for tests and usability
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	// Bind flags to viper
	bindRootFlags()

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// Initialize configuration if not already done
		if globalConfig == nil {
			initConfig()
		}
		cfg := GetConfig()

		// Set up structured logging. Results go to stdout, logs to stderr.
		logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		}))
		slog.SetDefault(logger)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configLoader = config.NewLoader()

	// Commands validate the merged configuration once their own flags are bound.
	var err error
	if cfgFile != "" {
		// Use config file from the flag
		globalConfig, err = configLoader.LoadWithFileWithoutValidation(cfgFile)
	} else {
		// Search for config in default locations
		globalConfig, err = configLoader.LoadWithoutValidation()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}

	// Reload configuration to ensure CLI flags are included
	// This is necessary because flag binding happens after initial config loading
	cfg, err := GetConfigLoader().Current()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling updated configuration: %v\n", err)
		return globalConfig // Return the original config if unmarshal fails
	}

	return cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

// bindRootFlags binds the persistent flags to viper configuration keys.
func bindRootFlags() {
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("client.remote_url", rootCmd.PersistentFlags().Lookup("remote"))
}

// bindFlags binds command flags to viper configuration keys.
func bindFlags(cmd *cobra.Command, flagBindings []flagBinding) {
	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

type flagBinding struct {
	key  string
	flag string
}
