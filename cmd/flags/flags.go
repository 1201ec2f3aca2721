package flags

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/snippet-provisioning-backend/api"
	"github.com/ruteri/snippet-provisioning-backend/catalog"
	"github.com/ruteri/snippet-provisioning-backend/common"
	"github.com/ruteri/snippet-provisioning-backend/fleet"
	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/ruteri/snippet-provisioning-backend/secrets"
	"github.com/ruteri/snippet-provisioning-backend/storage"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		// provisioning waits on the control plane, so leave room for its timeout
		WriteTimeout: cCtx.Duration(FleetTimeoutFlag.Name) + 30*time.Second,
	}
}

// SetupCatalog opens the stores named by --catalog. Several locations are
// combined into one redundant store.
func SetupCatalog(cCtx *cli.Context, logger *slog.Logger) (*catalog.Catalog, error) {
	uris := cCtx.StringSlice(CatalogFlag.Name)
	if len(uris) == 0 {
		return nil, fmt.Errorf("at least one --%s location is required", CatalogFlag.Name)
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}

	factory := storage.NewStorageBackendFactory(logger)
	var store interfaces.CatalogStore
	var err error
	if len(locations) == 1 {
		store, err = factory.StorageBackendFor(locations[0])
	} else {
		store, err = factory.CreateMultiBackend(locations)
	}
	if err != nil {
		return nil, fmt.Errorf("could not open catalog: %w", err)
	}

	return catalog.NewCatalog(store, logger), nil
}

// SetupFleetClient builds the control-plane client. The password flag may be
// a literal or an env://, file:// or vault:// reference.
func SetupFleetClient(ctx context.Context, cCtx *cli.Context, logger *slog.Logger) (*fleet.Client, error) {
	var vault secrets.FieldReader
	if addr := cCtx.String(VaultAddrFlag.Name); addr != "" {
		reader, err := secrets.NewVaultReader(addr, cCtx.String(VaultTokenFlag.Name), logger)
		if err != nil {
			return nil, fmt.Errorf("could not create vault client: %w", err)
		}
		vault = reader
	}

	password, err := secrets.NewResolver(vault, logger).Resolve(ctx, cCtx.String(FleetPasswordFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("could not resolve fleet password: %w", err)
	}

	return fleet.NewClient(fleet.Config{
		URL:           cCtx.String(FleetURLFlag.Name),
		Username:      cCtx.String(FleetUsernameFlag.Name),
		Password:      password,
		EAuth:         cCtx.String(FleetEAuthFlag.Name),
		Timeout:       cCtx.Duration(FleetTimeoutFlag.Name),
		Retries:       cCtx.Uint64(FleetRetriesFlag.Name),
		RetryInterval: cCtx.Duration(FleetRetryIntervalFlag.Name),
	}, logger)
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: []string{"LISTEN_ADDR"},
}

var CatalogFlag = &cli.StringSliceFlag{
	Name:    "catalog",
	Value:   cli.NewStringSlice("file://./catalog"),
	Usage:   "catalog location: file://dir, s3://bucket/prefix?region=, github://owner/repo/path?ref=. Repeat for redundant catalogs",
	EnvVars: []string{"CATALOG"},
}

var FleetURLFlag = &cli.StringFlag{
	Name:    "fleet-url",
	Value:   fleet.DefaultURL,
	Usage:   "control plane endpoint, http(s):// or srv+http(s):// to resolve the host via DNS SRV",
	EnvVars: []string{"FLEET_URL"},
}

var FleetUsernameFlag = &cli.StringFlag{
	Name:    "fleet-username",
	Value:   fleet.DefaultUsername,
	Usage:   "control plane user",
	EnvVars: []string{"FLEET_USERNAME"},
}

var FleetPasswordFlag = &cli.StringFlag{
	Name:    "fleet-password",
	Usage:   "control plane password: literal, env://VAR, file:///path or vault://mount/path#field",
	EnvVars: []string{"FLEET_PASSWORD"},
}

var FleetEAuthFlag = &cli.StringFlag{
	Name:    "fleet-eauth",
	Value:   fleet.DefaultEAuth,
	Usage:   "control plane external auth backend",
	EnvVars: []string{"FLEET_EAUTH"},
}

var FleetTimeoutFlag = &cli.DurationFlag{
	Name:    "fleet-timeout",
	Value:   fleet.DefaultTimeout,
	Usage:   "timeout of every control plane call",
	EnvVars: []string{"FLEET_TIMEOUT"},
}

var FleetRetriesFlag = &cli.Uint64Flag{
	Name:    "fleet-auth-retries",
	Value:   0,
	Usage:   "extra attempts for login and node listing after connection failures",
	EnvVars: []string{"FLEET_AUTH_RETRIES"},
}

var FleetRetryIntervalFlag = &cli.DurationFlag{
	Name:    "fleet-retry-interval",
	Value:   500 * time.Millisecond,
	Usage:   "initial backoff between retries",
	EnvVars: []string{"FLEET_RETRY_INTERVAL"},
}

var CheckTargetPresenceFlag = &cli.BoolFlag{
	Name:    "check-target-presence",
	Value:   false,
	Usage:   "run the target's presence probe before pushing it, not only the baseline's",
	EnvVars: []string{"CHECK_TARGET_PRESENCE"},
}

var VaultAddrFlag = &cli.StringFlag{
	Name:    "vault-addr",
	Usage:   "Vault address for vault:// secret references",
	EnvVars: []string{"VAULT_ADDR"},
}

var VaultTokenFlag = &cli.StringFlag{
	Name:    "vault-token",
	Usage:   "Vault token",
	EnvVars: []string{"VAULT_TOKEN"},
}

var ServerAddrFlag = &cli.StringFlag{
	Name:    "server",
	Value:   "http://127.0.0.1:8080",
	Usage:   "provisioning server base URL",
	EnvVars: []string{"PROVISIONING_SERVER"},
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to report not ready before shutting down",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}

var ServerFlags = []cli.Flag{
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}

var FleetFlags = []cli.Flag{
	FleetURLFlag,
	FleetUsernameFlag,
	FleetPasswordFlag,
	FleetEAuthFlag,
	FleetTimeoutFlag,
	FleetRetriesFlag,
	FleetRetryIntervalFlag,
	VaultAddrFlag,
	VaultTokenFlag,
}
