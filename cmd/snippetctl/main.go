package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ruteri/snippet-provisioning-backend/api/provisioner"
	"github.com/ruteri/snippet-provisioning-backend/catalog"
	"github.com/ruteri/snippet-provisioning-backend/cmd/flags"
	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/ruteri/snippet-provisioning-backend/provision"
	"github.com/ruteri/snippet-provisioning-backend/render"
	"github.com/urfave/cli/v2"
)

var flagVar = &cli.StringSliceFlag{
	Name:    "var",
	Aliases: []string{"v"},
	Usage:   "template variable as key=value, repeatable",
}

var flagType = &cli.StringFlag{
	Name:  "type",
	Usage: "only list bundles of this type: service, baseline or template",
}

var flagWrite = &cli.BoolFlag{
	Name:  "write",
	Usage: "write the generated metadata.yaml into the bundle instead of printing it",
}

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	localFlags := append([]cli.Flag{flags.CatalogFlag}, flags.LogFlags...)
	remoteFlags := []cli.Flag{flags.ServerAddrFlag}

	return &cli.App{
		Name:      "snippetctl",
		Usage:     "Inspect the snippet catalog and drive a provisioning server",
		Writer:    out,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List catalog bundles ordered by label",
				Flags: append([]cli.Flag{flagType}, localFlags...),
				Action: func(cCtx *cli.Context) error {
					cat, err := flags.SetupCatalog(cCtx, flags.SetupLogger(cCtx))
					if err != nil {
						return err
					}
					defs, err := cat.LoadByType(cCtx.Context, interfaces.ServiceType(cCtx.String(flagType.Name)))
					if err != nil {
						return err
					}
					for _, s := range catalog.Summaries(defs) {
						fmt.Fprintf(cCtx.App.Writer, "%-30s %-10s %s\n", s.Name, s.Type, s.Label)
					}
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Print a bundle's definition",
				ArgsUsage: "<service>",
				Flags:     localFlags,
				Action: func(cCtx *cli.Context) error {
					name, err := requireArg(cCtx, "service")
					if err != nil {
						return err
					}
					cat, err := flags.SetupCatalog(cCtx, flags.SetupLogger(cCtx))
					if err != nil {
						return err
					}
					def, ok, err := cat.LoadByName(cCtx.Context, name)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("%w: %s", interfaces.ErrServiceNotFound, name)
					}
					out, err := catalog.MarshalMetadata(def)
					if err != nil {
						return err
					}
					fmt.Fprint(cCtx.App.Writer, string(out))
					return nil
				},
			},
			{
				Name:      "render",
				Usage:     "Render a service locally with merged defaults, without contacting the control plane",
				ArgsUsage: "<service>",
				Flags:     append([]cli.Flag{flagVar}, localFlags...),
				Action: func(cCtx *cli.Context) error {
					name, err := requireArg(cCtx, "service")
					if err != nil {
						return err
					}
					vars, err := parseVars(cCtx.StringSlice(flagVar.Name))
					if err != nil {
						return err
					}
					logger := flags.SetupLogger(cCtx)
					cat, err := flags.SetupCatalog(cCtx, logger)
					if err != nil {
						return err
					}
					renderer := render.NewRenderer(cat, logger)

					res, err := provision.NewOrchestrator(cat, renderer, nil, provision.Options{}, logger).Resolve(cCtx.Context, name, vars)
					if err != nil {
						return err
					}
					if res.Baseline != nil {
						fmt.Fprintf(cCtx.App.ErrWriter, "# extends %s, pushed first when absent\n", res.Baseline.Name)
					}

					docs, err := renderer.Render(cCtx.Context, res.Target, res.Vars)
					if err != nil {
						return err
					}
					for _, doc := range docs {
						payload, err := render.Payload(doc)
						if err != nil {
							return err
						}
						fmt.Fprintf(cCtx.App.Writer, "# %s (%s)\n%s\n", doc.Name, doc.File, payload)
					}
					return nil
				},
			},
			{
				Name:      "init-metadata",
				Usage:     "Generate metadata.yaml for a bundle from the variables its templates reference",
				ArgsUsage: "<bundle>",
				Flags:     append([]cli.Flag{flagWrite}, localFlags...),
				Action: func(cCtx *cli.Context) error {
					bundle, err := requireArg(cCtx, "bundle")
					if err != nil {
						return err
					}
					cat, err := flags.SetupCatalog(cCtx, flags.SetupLogger(cCtx))
					if err != nil {
						return err
					}
					def, err := cat.GenerateMetadata(cCtx.Context, bundle)
					if err != nil {
						return err
					}
					if cCtx.Bool(flagWrite.Name) {
						return cat.WriteMetadata(cCtx.Context, def)
					}
					out, err := catalog.MarshalMetadata(def)
					if err != nil {
						return err
					}
					fmt.Fprint(cCtx.App.Writer, string(out))
					return nil
				},
			},
			{
				Name:      "provision",
				Usage:     "Provision a service through the server",
				ArgsUsage: "<service>",
				Flags:     append([]cli.Flag{flagVar}, remoteFlags...),
				Action: func(cCtx *cli.Context) error {
					name, err := requireArg(cCtx, "service")
					if err != nil {
						return err
					}
					vars, err := parseVars(cCtx.StringSlice(flagVar.Name))
					if err != nil {
						return err
					}
					out, err := newClient(cCtx).Provision(cCtx.Context, name, vars)
					if err != nil {
						return err
					}
					if err := printJSON(cCtx.App.Writer, out); err != nil {
						return err
					}
					if !out.Succeeded() {
						return cli.Exit("", 1)
					}
					return nil
				},
			},
			{
				Name:      "run",
				Usage:     "Run a query-style snippet through the server and print the per-node answer",
				ArgsUsage: "<service>",
				Flags:     append([]cli.Flag{flagVar}, remoteFlags...),
				Action: func(cCtx *cli.Context) error {
					name, err := requireArg(cCtx, "service")
					if err != nil {
						return err
					}
					vars, err := parseVars(cCtx.StringSlice(flagVar.Name))
					if err != nil {
						return err
					}
					resp, err := newClient(cCtx).Run(cCtx.Context, name, vars)
					if err != nil {
						return err
					}
					return printJSON(cCtx.App.Writer, resp)
				},
			},
			{
				Name:  "nodes",
				Usage: "List execution nodes known to the control plane",
				Flags: remoteFlags,
				Action: func(cCtx *cli.Context) error {
					nodes, err := newClient(cCtx).Nodes(cCtx.Context)
					if err != nil {
						return err
					}
					for _, n := range nodes {
						fmt.Fprintln(cCtx.App.Writer, n)
					}
					return nil
				},
			},
		},
	}
}

func newClient(cCtx *cli.Context) *provisioner.ProvisioningClient {
	return &provisioner.ProvisioningClient{ServerAddr: strings.TrimSuffix(cCtx.String(flags.ServerAddrFlag.Name), "/")}
}

func requireArg(cCtx *cli.Context, name string) (string, error) {
	if cCtx.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one <%s> argument", name)
	}
	return cCtx.Args().First(), nil
}

// parseVars turns key=value pairs into a variable map. Values may contain '='.
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q, expected key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}
