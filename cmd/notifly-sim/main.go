// notifly-sim runs the SDK end to end against an in-process stub backend:
// it syncs a small campaign set, tracks a few events, and logs what the
// renderer would have shown.
package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	notifly "notifly-go"
	"notifly-go/internal/syncer/fixture"
)

type logRenderer struct{}

func (logRenderer) RenderCampaign(url string, _ map[string]any, correlationID string) {
	log.Info().Str("url", url).Str("correlation_id", correlationID).Msg("render")
}

type alwaysForeground struct{}

func (alwaysForeground) Foreground() bool { return true }

func main() {
	backend := fixture.NewStateServer(map[string]any{
		"campaigns": []map[string]any{
			{
				"id":                     "welcome",
				"channel":                "in-app-message",
				"last_updated_timestamp": 100,
				"triggering_event":       "app_open",
				"message": map[string]any{
					"html_url":      "https://cdn.example.com/welcome.html",
					"template_name": "welcome",
				},
			},
		},
		"event_intermediate_counts": []any{},
		"user_data":                 map[string]any{"platform": "android", "os_version": "13"},
	})
	defer backend.Close()

	cfg := notifly.LoadConfig()
	cfg.Project.ID = "sim-project"
	cfg.Project.BaseURL = backend.URL
	cfg.Client.StorePath = ":memory:"
	cfg.Device.Platform = "android"
	cfg.Device.OSVersion = "13"

	client, err := notifly.New(cfg, notifly.Options{
		Renderer:    logRenderer{},
		Foreground:  alwaysForeground{},
		Credentials: fixture.NewStaticCredentials("sim-token"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build client")
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Queued before READY, drained after the initial sync.
	client.TrackEvent(ctx, "app_open", nil)

	if err := client.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("initialize failed")
	}

	client.MessageClosed()
	client.TrackEvent(ctx, "app_open", map[string]any{"source": "sim"})
	log.Info().Msg("simulation done")
}
