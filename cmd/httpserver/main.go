package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/snippet-provisioning-backend/api/provisioner"
	"github.com/ruteri/snippet-provisioning-backend/cmd/flags"
	"github.com/ruteri/snippet-provisioning-backend/httpserver"
	"github.com/ruteri/snippet-provisioning-backend/provision"
	"github.com/ruteri/snippet-provisioning-backend/render"
	"github.com/urfave/cli/v2"
)

func main() {
	serverFlags := []cli.Flag{
		flags.ListenAddrFlag,
		flags.CatalogFlag,
		flags.CheckTargetPresenceFlag,
		flags.LogServiceFlagFn("snippet-provisioner"),
	}
	serverFlags = append(serverFlags, flags.FleetFlags...)
	serverFlags = append(serverFlags, flags.ServerFlags...)
	serverFlags = append(serverFlags, flags.LogFlags...)

	app := &cli.App{
		Name:  "provisioning-server",
		Usage: "Serve the snippet provisioning API",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			cat, err := flags.SetupCatalog(cCtx, logger)
			if err != nil {
				logger.Error("Failed to open catalog", "err", err)
				return err
			}
			logger.Info("Catalog opened", "location", cat.Store().LocationURI())

			fleetClient, err := flags.SetupFleetClient(cCtx.Context, cCtx, logger)
			if err != nil {
				logger.Error("Failed to create fleet client", "err", err)
				return err
			}

			// Log in eagerly so a misconfigured control plane shows up at startup.
			// Requests authenticate lazily anyway, so this is not fatal.
			if err := fleetClient.Authenticate(cCtx.Context); err != nil {
				logger.Warn("Initial control plane login failed", "err", err)
			}

			orchestrator := provision.NewOrchestrator(
				cat,
				render.NewRenderer(cat, logger),
				fleetClient,
				provision.Options{CheckTargetPresence: cCtx.Bool(flags.CheckTargetPresenceFlag.Name)},
				logger,
			)
			handler := provisioner.NewHandler(orchestrator, logger)

			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			// Wait for termination signal
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("Server is running, press Ctrl+C to stop")
			<-ctx.Done()
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
