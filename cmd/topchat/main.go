package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"topchat/internal/app"
	"topchat/internal/config"
)

var configPath string

func main() {
	// A missing .env file is fine; the environment overlay is optional.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "topchat",
		Short:         "Host metrics stream with chat riding along",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON config file")
	root.AddCommand(newServeCommand(), newWatchCommand())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("TOPCHAT_CONFIG_FILE")
	}
	return config.Load(path)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the snapshot server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			application, err := app.NewApplication(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return application.Run(ctx)
		},
	}
}

func newWatchCommand() *cobra.Command {
	var (
		name      string
		auto      bool
		instances int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect panel instances to a snapshot server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if instances > 0 {
				cfg.Watch.Instances = instances
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.RunWatch(ctx, cfg, app.WatchOptions{Name: name, Auto: auto})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name to commit once connected")
	cmd.Flags().BoolVar(&auto, "auto", false, "enable periodic auto messages")
	cmd.Flags().IntVar(&instances, "instances", 0, "number of panel instances (overrides config)")
	return cmd
}
