package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// BannerName is the product name shown at startup
const BannerName = "Central Rogues"

// RunSettings summarises the configuration a report run uses; no secrets
type RunSettings struct {
	Environment     string
	DeliveryMode    string
	OutputPath      string
	FallbackPath    string
	IncludeSuspects bool
	IncludeAll      bool
	TokenCache      string
}

// NewRunSettings extracts the startup summary from config
func NewRunSettings(config *Config) RunSettings {
	settings := RunSettings{
		Environment:     config.Environment,
		DeliveryMode:    config.Delivery.Mode,
		OutputPath:      config.Delivery.OutputPath,
		IncludeSuspects: config.Central.IncludeSuspects,
		IncludeAll:      config.Report.IncludeAll,
		TokenCache:      "disabled",
	}
	if config.Delivery.Mode != DeliveryModeFile {
		settings.FallbackPath = config.FallbackPath()
	}
	if config.Storage.Badger.Enabled {
		settings.TokenCache = config.Storage.Badger.Path
	}
	return settings
}

// PrintBanner displays the application banner and logs the run settings
func PrintBanner(config *Config, logger arbor.ILogger) RunSettings {
	banner.Print(BannerName, GetVersion())

	settings := NewRunSettings(config)
	event := logger.Info().
		Str("version", GetVersion()).
		Str("environment", settings.Environment).
		Str("delivery", settings.DeliveryMode).
		Str("output_path", settings.OutputPath).
		Bool("include_suspects", settings.IncludeSuspects).
		Bool("include_all", settings.IncludeAll).
		Str("token_cache", settings.TokenCache)
	if settings.FallbackPath != "" {
		event = event.Str("fallback_path", settings.FallbackPath)
	}
	event.Msg("Rogue report starting")
	return settings
}
