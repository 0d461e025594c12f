package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/central-rogues/internal/app"
	"github.com/ternarybob/central-rogues/internal/common"
	"github.com/ternarybob/central-rogues/internal/delivery"
)

const (
	exitOK              = 0
	exitFatal           = 1
	exitDeliveryFailure = 2
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles     configPaths
	credentialsFile = flag.String("credentials", "", "Credentials file (YAML or TOML, overrides config)")
	outputPath      = flag.String("output", "", "Report output path (overrides config)")
	showVersion     = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: central-rogues [flags] [report|show|tokens [reset]|version]\n\n")
		flag.PrintDefaults()
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	command := "report"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	if *showVersion || command == "version" {
		fmt.Printf("central-rogues version %s\n", common.GetFullVersion())
		return exitOK
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("central-rogues.toml"); err == nil {
			configFiles = append(configFiles, "central-rogues.toml")
		}
	}

	// Startup sequence: config -> flags -> validate -> logger -> banner.
	// Config errors surface before any network call.
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		return fatal(common.NewConsoleLogger(), err, "Failed to load configuration")
	}
	common.ApplyFlagOverrides(config, *credentialsFile, *outputPath)
	if err := config.Validate(); err != nil {
		return fatal(common.NewConsoleLogger(), err, "Invalid configuration")
	}

	logger := common.InitLogger(config)

	account, err := common.LoadAccount(config.CredentialsFile)
	if err != nil {
		return fatal(logger, err, "Failed to load credentials")
	}
	mode := config.Delivery.Mode
	if command != "report" {
		mode = common.DeliveryModeFile
	}
	if err := account.Validate(mode); err != nil {
		return fatal(logger, err, "Invalid credentials")
	}

	if command == "report" {
		common.PrintBanner(config, logger)
	}

	logger.Info().
		Strs("config_files", configFiles).
		Str("credentials", config.CredentialsFile).
		Str("delivery", config.Delivery.Mode).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(config, account, logger)
	if err != nil {
		return fatal(logger, err, "Failed to initialize application")
	}
	defer application.Close()

	switch command {
	case "report":
		return runReport(ctx, application, logger)
	case "show":
		return runShow(ctx, application, logger)
	case "tokens":
		return runTokens(ctx, application, logger, flag.Arg(1))
	default:
		logger.Error().Str("command", command).Msg("Unknown command")
		flag.Usage()
		return exitFatal
	}
}

func runReport(ctx context.Context, application *app.App, logger arbor.ILogger) int {
	result, err := application.Run(ctx)

	var deliveryErr *delivery.DeliveryError
	if errors.As(err, &deliveryErr) {
		logger.Warn().
			Err(deliveryErr.Err).
			Str("transport", deliveryErr.Transport).
			Str("saved_to", deliveryErr.Path).
			Msg("Report email failed; local copy kept")
		if application.Config.Delivery.Required {
			return exitDeliveryFailure
		}
		return exitOK
	}
	if err != nil {
		return fatal(logger, err, "Rogue report failed")
	}

	fmt.Printf("%d rogue APs reported (%s)\n", result.Report.Count(), result.Delivery.Detail)
	return exitOK
}

func fatal(logger arbor.ILogger, err error, msg string) int {
	logger.Error().Err(err).Msg(msg)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitFatal
}
