package cmd

import (
	"github.com/carousell/ct-go/pkg/logger/log"
	"github.com/spf13/cobra"

	"github.com/velora/chat-core/internal/app"
	"github.com/velora/chat-core/internal/kafka"
	"github.com/velora/chat-core/internal/server"
)

var rootCmd = &cobra.Command{
	Use:           "chat-core",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		app.Invoke(
			server.StartServer,
			kafka.StartConsumer,
		).Run()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
