// Command feedbackbot runs the Telegram feedback relay.
package main

import (
	"context"
	"log"

	"github.com/m3rciful/feedbackbot/core/bootstrap"
	corecmd "github.com/m3rciful/feedbackbot/core/cmd"
	"github.com/m3rciful/feedbackbot/relay/app"
	"github.com/m3rciful/feedbackbot/relay/store"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(context.Background(), cfg.(*app.Config), bootstrap.Options[store.Repository]{})
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
