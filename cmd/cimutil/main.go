// cimutil builds, mounts and publishes composite filesystem images.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mwantia/cim/log"
	"github.com/mwantia/cim/registry"
	consulstore "github.com/mwantia/cim/registry/consul"
	postgresstore "github.com/mwantia/cim/registry/postgres"
	sqlitestore "github.com/mwantia/cim/registry/sqlite"
)

const defaultConfigPath = "cimutil.toml"

// app carries the loaded configuration and logger shared by all commands.
type app struct {
	cfg fileConfig
	lg  *log.Logger
}

func main() {
	a := &app{}

	var (
		configPath string
		rootDir    string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:   "cimutil",
		Short: "Build, mount and publish composite filesystem images",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			explicit := cmd.Flags().Changed("config")
			cfg, err := loadConfig(configPath, explicit)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("root") {
				cfg.Root = rootDir
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			level, err := log.Parse(cfg.LogLevel)
			if err != nil {
				return err
			}

			a.cfg = cfg
			a.lg = log.NewLogger("cimutil", level, cfg.LogFile, false)
			a.lg.JSON = cfg.LogJSON
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the TOML config file")
	flags.StringVarP(&rootDir, "root", "r", ".", "image root directory")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newCommand(a))
	rootCmd.AddCommand(forkCommand(a))
	rootCmd.AddCommand(mountCommand(a))
	rootCmd.AddCommand(dismountCommand(a))
	rootCmd.AddCommand(mountsCommand(a))
	rootCmd.AddCommand(pushCommand(a))
	rootCmd.AddCommand(pullCommand(a))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore builds the mount registry store selected by the config.
func (a *app) openStore(ctx context.Context) (registry.Store, error) {
	reg := a.cfg.Registry

	switch reg.Driver {
	case "", "sqlite":
		path := reg.Path
		if path == "" {
			path = "mounts.db"
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.cfg.Root, path)
		}
		return sqlitestore.NewStore(path)

	case "consul":
		return consulstore.NewStore(&consulstore.Config{
			Address:    reg.ConsulAddress,
			Token:      reg.ConsulToken,
			Datacenter: reg.ConsulDatacenter,
			Prefix:     reg.ConsulPrefix,
		})

	case "postgres":
		if reg.DSN == "" {
			return nil, fmt.Errorf("registry driver %q requires a dsn", reg.Driver)
		}
		return postgresstore.NewStore(ctx, reg.DSN)

	default:
		return nil, fmt.Errorf("unknown registry driver %q", reg.Driver)
	}
}
