package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"beacon.app/feedback/common/logger"
	"beacon.app/feedback/core/config"
	"beacon.app/feedback/internal/apiclient"
	"beacon.app/feedback/internal/device"
	"beacon.app/feedback/internal/profile"
	"beacon.app/feedback/internal/session"
)

var (
	profilePath string
	apiURL      string
	appToken    string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Send feedback and bug reports to the beacon intake API",
	Long: `beacon sends feedback and bug reports, optionally with a screenshot,
to the beacon intake API.

Apps that require a logged-in user reject anonymous reports; run
'beacon login' first.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", profile.DefaultPath(), "profile file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "intake API base URL (overrides the profile)")
	rootCmd.PersistentFlags().StringVar(&appToken, "app-token", "", "app token (overrides the profile)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests and state changes to stderr")

	rootCmd.AddCommand(sendCmd, loginCmd, logoutCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// clientEnv is what every subcommand needs to talk to the intake API.
type clientEnv struct {
	cfg      config.Config
	profile  *profile.Store
	api      *apiclient.Client
	sessions *session.Manager
	logger   *slog.Logger
}

func newClientEnv(ctx context.Context) (*clientEnv, error) {
	cfg, err := config.Load(config.ServiceTypeClient)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg)

	store, err := profile.Load(profilePath)
	if err != nil {
		return nil, err
	}

	p := store.Profile()
	baseURL := firstNonEmpty(apiURL, p.APIURL, cfg.Client.APIURL)
	token := firstNonEmpty(appToken, p.AppToken, cfg.Client.AppToken)
	if token == "" {
		return nil, fmt.Errorf("no app token: pass --app-token or set BEACON_APP_TOKEN")
	}

	log := slog.Default()
	api := apiclient.New(apiclient.Config{
		BaseURL:  baseURL,
		AppToken: token,
		Timeout:  cfg.Client.Timeout,
		App: device.App{
			PackageName: cfg.Client.PackageName,
			Version:     cfg.Client.PackageVersion,
			VersionName: cfg.Client.AppVersion,
			SDKVersion:  cfg.Client.SDKVersion,
		},
		Logger: log,
	})

	log.DebugContext(ctx, "client configured", "api_url", baseURL, "profile", store.Path())

	return &clientEnv{
		cfg:      cfg,
		profile:  store,
		api:      api,
		sessions: session.NewManager(api, store, log),
		logger:   log,
	}, nil
}

// setupLogging keeps stderr quiet unless --verbose is set, so the terminal
// view stays readable.
func setupLogging(cfg config.Config) {
	if verbose {
		logger.SetupWithWriter(cfg, os.Stderr)
		return
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})
	slog.SetDefault(slog.New(logger.NewTraceHandler(handler)))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
