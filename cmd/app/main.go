package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/gopher-mcp/internal"
	"github.com/starford/gopher-mcp/internal/apperr"
	"github.com/starford/gopher-mcp/internal/certs"
	"github.com/starford/gopher-mcp/internal/checksum"
	"github.com/starford/gopher-mcp/internal/models"
	"github.com/starford/gopher-mcp/internal/tofu"
	pkgconfig "github.com/starford/gopher-mcp/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) && !cmd.IsSet("config") {
		// Defaults only; the file is optional unless asked for explicitly.
		return cfg, cfg.Validate()
	}
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func fetch(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.Args().First()
	if raw == "" {
		return errors.New("usage: fetch <gopher://... | gemini://...>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	comps, err := internal.Build(cfg, internal.NewLogger(cfg.App.LogLevel, nil), nil)
	if err != nil {
		return err
	}
	defer comps.Close()

	var result models.Result
	switch {
	case strings.HasPrefix(strings.ToLower(raw), "gemini://"):
		result = comps.Gemini.Fetch(ctx, raw)
	default:
		result = comps.Gopher.Fetch(ctx, raw)
	}

	out, err := models.EncodeIndent(result)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if result.Kind() == models.KindError {
		return cli.Exit("", 2)
	}
	return nil
}

func openTrust(cmd *cli.Command) (*tofu.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if !cfg.Gemini.TOFU.Enabled {
		return nil, errors.New("tofu is disabled in the config")
	}
	return tofu.Open(cfg.Gemini.TOFU.Path)
}

func trustList(ctx context.Context, cmd *cli.Command) error {
	store, err := openTrust(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tFINGERPRINT\tFIRST SEEN\tLAST SEEN\tEXPIRES")
	for _, r := range records {
		expires := "-"
		if !r.NotAfter.IsZero() {
			expires = r.NotAfter.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.HostPort, checksum.Colons(r.Fingerprint),
			r.FirstSeen.Format(time.RFC3339), r.LastSeen.Format(time.RFC3339), expires)
	}
	return tw.Flush()
}

func trustRemove(ctx context.Context, cmd *cli.Command) error {
	hostPort := cmd.Args().First()
	if hostPort == "" {
		return errors.New("usage: trust remove <host:port>")
	}
	store, err := openTrust(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Remove(ctx, hostPort); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("no trust record for %s", hostPort)
		}
		return err
	}
	fmt.Printf("removed trust record for %s\n", hostPort)
	return nil
}

func certsGenerate(_ context.Context, cmd *cli.Command) error {
	host := cmd.Args().First()
	if host == "" {
		return errors.New("usage: certs generate <host|default>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	validity := time.Duration(cmd.Int("days")) * 24 * time.Hour
	cert, err := certs.Generate(cfg.Gemini.ClientCerts.Dir, host, validity)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s.crt and %s.key to %s\nfingerprint %s\nexpires %s\n",
		host, host, cfg.Gemini.ClientCerts.Dir,
		checksum.Colons(checksum.Fingerprint(cert)), cert.NotAfter.Format(time.DateOnly))
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "gopher-mcp",
		Usage:  "MCP server for browsing Gopher and Gemini",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (.yaml or .toml)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the MCP server (stdio or http, per app.transport)",
				Action: serve,
			},
			{
				Name:      "fetch",
				Usage:     "Fetch one URL and print the result as JSON",
				ArgsUsage: "<url>",
				Action:    fetch,
			},
			{
				Name:  "trust",
				Usage: "Inspect or reset pinned gemini certificates",
				Commands: []*cli.Command{
					{Name: "list", Usage: "List pinned certificates", Action: trustList},
					{Name: "remove", Usage: "Forget the pinned certificate of a host", ArgsUsage: "<host:port>", Action: trustRemove},
				},
			},
			{
				Name:  "certs",
				Usage: "Manage gemini client certificates",
				Commands: []*cli.Command{
					{
						Name:      "generate",
						Usage:     "Create a self-signed client certificate for a host",
						ArgsUsage: "<host|default>",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "days", Value: 365, Usage: "Validity in days"},
						},
						Action: certsGenerate,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
