package main

import (
	"context"
	"os"
	"runtime/debug"

	"github.com/brizzai/linkedin-link/internal/auth"
	"github.com/brizzai/linkedin-link/internal/config"
	"github.com/brizzai/linkedin-link/internal/linking"
	"github.com/brizzai/linkedin-link/internal/logger"
	"github.com/brizzai/linkedin-link/internal/requester"
	"github.com/brizzai/linkedin-link/internal/server"
	"github.com/brizzai/linkedin-link/internal/storage"
	"github.com/brizzai/linkedin-link/internal/telemetry"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "linkedin-link",
	Short: "Link user accounts to LinkedIn",
	Long: `linkedin-link runs the LinkedIn OAuth flow for signed-in users and stores
their profile, email address and recent posts as one linked account.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	RunE:  runConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Place version check in PreRun to ensure flags are parsed first
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
	config.InitFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(serveCmd, configCmd)
}

// appOptions assembles the application graph for cfg.
func appOptions(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.WithLogger(logger.FxLogger),
		fx.Supply(cfg),
		config.Module,
		requester.Module,
		telemetry.Module,
		storage.Module,
		auth.Module,
		linking.Module,
		server.Module,
	)
}

func runServe(cmd *cobra.Command, args []string) error {
	defer func() {
		if r := recover(); r != nil {
			pterm.Error.Printf("\nCaught panic: %v\n", r)
			pterm.Error.Printf("%s\n", debug.Stack())
			os.Exit(2)
		}
	}()

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if err := logger.InitLogger(&cfg.Logging); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting linkedin-link", zap.String("version", config.GetVersionInfo()))

	app := fx.New(appOptions(cfg))
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	signal := <-app.Wait()
	logger.Info("Stopping", zap.String("signal", signal.Signal.String()))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}

	if signal.ExitCode != 0 {
		os.Exit(signal.ExitCode)
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return err
	}
	pterm.Info.Println("Effective configuration")
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
