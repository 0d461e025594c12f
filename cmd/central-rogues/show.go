package main

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/central-rogues/internal/app"
	"github.com/ternarybob/central-rogues/internal/report"
)

// runShow prints the filtered rogues followed by every RAPIDS record
func runShow(ctx context.Context, application *app.App, logger arbor.ILogger) int {
	collection, err := application.Collect(ctx)
	if err != nil {
		return fatal(logger, err, "Failed to collect rogue APs")
	}

	fmt.Println(report.RenderText("SSIDs Classified as Rogues", collection.Rogues))
	fmt.Println(report.RenderText("Rogue Types Found", collection.All))
	return exitOK
}

// runTokens prints the token cache state; token values are never shown.
// "tokens reset" drops the cache entry instead.
func runTokens(ctx context.Context, application *app.App, logger arbor.ILogger, action string) int {
	if action == "reset" {
		removed, err := application.ResetTokens(ctx)
		if err != nil {
			return fatal(logger, err, "Failed to reset token cache")
		}
		if !removed {
			fmt.Println("No cached token for this client")
			return exitOK
		}
		fmt.Printf("Token cache cleared for client %s\n", application.Account.ClientID)
		return exitOK
	}
	if action != "" {
		logger.Error().Str("action", action).Msg("Unknown tokens action")
		return exitFatal
	}

	status, err := application.TokenStatus(ctx)
	if err != nil {
		return fatal(logger, err, "Failed to read token cache")
	}
	if !status.Cached {
		fmt.Println("No cached token for this client")
		return exitOK
	}

	fmt.Printf("Cached token for client %s\n", application.Account.ClientID)
	fmt.Printf("\taccess token:  %t\n", status.HasAccessToken)
	fmt.Printf("\trefresh token: %t\n", status.HasRefreshToken)
	fmt.Printf("\texpires:       %s\n", status.Expiry)
	fmt.Printf("\tupdated:       %s\n", status.UpdatedAt)
	if !status.ConfiguredSeed {
		fmt.Println("\tconfigured refresh token changed; the cache is ignored on the next run")
	}
	return exitOK
}
