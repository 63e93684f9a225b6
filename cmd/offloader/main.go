package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/offloader/service/internal/attachment"
	"github.com/offloader/service/internal/config"
	"github.com/offloader/service/internal/db"
	"github.com/offloader/service/internal/logger"
	"github.com/offloader/service/internal/offload"
	"github.com/offloader/service/internal/settings"
	"github.com/offloader/service/internal/storage"
)

// deps holds everything a command needs, built per invocation.
type deps struct {
	pool     *pgxpool.Pool
	provider *settings.Provider
	syncer   *offload.Syncer
}

func (d *deps) Close() {
	d.pool.Close()
}

func setup(c *cli.Context, dryRun bool) (*deps, error) {
	cfg := config.Load()
	logger.Setup(cfg.AppEnv, c.String("log-level"))

	pool, err := db.Connect(c.Context, c.String("db-url"))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	root := c.String("upload-root")
	repo := attachment.NewRepository(pool)
	provider := settings.NewProvider(settings.NewPostgresStore(pool), settings.EnvDefaults())

	var (
		store  offload.AttachmentStore = repo
		source offload.ConfigSource    = provider
		build  storage.Builder
	)
	if dryRun {
		mem := storage.NewMemoryClient()
		build = func(context.Context, settings.StorageConfig) (storage.Client, error) { return mem, nil }
		store = dryRunStore{repo}
		source = dryRunConfig{provider}
	}
	uploader := offload.NewUploader(store, source, storage.NewFactory(build), root)

	return &deps{
		pool:     pool,
		provider: provider,
		syncer:   offload.NewSyncer(repo, uploader, root),
	}, nil
}

// dryRunStore never records remote URLs.
type dryRunStore struct {
	*attachment.Repository
}

func (dryRunStore) SetRemoteURL(context.Context, string, string) error { return nil }

// dryRunConfig never lets local files be deleted.
type dryRunConfig struct {
	offload.ConfigSource
}

func (c dryRunConfig) Snapshot(ctx context.Context) (settings.StorageConfig, error) {
	cfg, err := c.ConfigSource.Snapshot(ctx)
	cfg.DeleteLocal = false
	return cfg, err
}

func main() {
	// Flags read DATABASE_URL and friends, so .env has to be loaded first.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "offloader",
		Usage: "Offload media attachments to S3-compatible object storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db-url",
				Usage:    "Database connection string",
				Required: true,
				EnvVars:  []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "upload-root",
				Usage:   "Directory attachment files are relative to",
				Value:   "./data/uploads",
				EnvVars: []string{"UPLOAD_ROOT"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply database migrations",
				Action: func(c *cli.Context) error {
					return db.Migrate(c.String("db-url"))
				},
			},
			{
				Name:  "sync",
				Usage: "Upload every attachment that has not been offloaded yet",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "batch",
						Usage:   "Number of attachments read from the database per page",
						Value:   offload.DefaultBatch,
						EnvVars: []string{"SYNC_BATCH"},
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Read and upload into memory without touching the bucket",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print one line per attachment",
					},
				},
				Action: runSync,
			},
			{
				Name:   "test-connection",
				Usage:  "Upload and remove a throwaway file to check the storage settings",
				Action: runTestConnection,
			},
			{
				Name:  "settings",
				Usage: "Read or change storage settings",
				Subcommands: []*cli.Command{
					{
						Name:      "get",
						Usage:     "Print one setting, or all of them",
						ArgsUsage: "[name]",
						Action:    runSettingsGet,
					},
					{
						Name:      "set",
						Usage:     "Store a setting",
						ArgsUsage: "<name> <value>",
						Action:    runSettingsSet,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSync(c *cli.Context) error {
	d, err := setup(c, c.Bool("dry-run"))
	if err != nil {
		return err
	}
	defer d.Close()

	w := c.App.Writer
	fmt.Fprintln(w, "Starting S3 sync...")
	if c.Bool("dry-run") {
		fmt.Fprintln(w, "Dry run: nothing is written to the bucket.")
	}

	verbose := c.Bool("verbose")
	announced := false
	report, err := d.syncer.Sync(c.Context, c.Int("batch"), func(p offload.Progress) {
		if !announced {
			fmt.Fprintf(w, "Found %d files to sync.\n", p.Pending)
			announced = true
		}
		if verbose {
			line := fmt.Sprintf("[%d/%d] %s %s", p.Done, p.Pending, p.Result.Status, p.Result.AttachmentID)
			if p.Result.Reason != "" {
				line += " (" + p.Result.Reason + ")"
			}
			fmt.Fprintln(w, line)
		}
	})
	if err != nil {
		return err
	}
	if !announced {
		fmt.Fprintln(w, "Found 0 files to sync.")
	}

	fmt.Fprintf(w, "Sync complete. Success: %d, Failed: %d\n", report.Succeeded, report.Failed)
	return nil
}

func runTestConnection(c *cli.Context) error {
	d, err := setup(c, false)
	if err != nil {
		return err
	}
	defer d.Close()

	fmt.Fprintln(c.App.Writer, "Testing S3 connection...")
	if _, err := d.syncer.CheckConnection(c.Context); err != nil {
		return cli.Exit(fmt.Sprintf("%s\n%v", offload.MsgConnectionFailed, err), 1)
	}
	fmt.Fprintln(c.App.Writer, offload.MsgConnectionOK)
	return nil
}

func runSettingsGet(c *cli.Context) error {
	d, err := setup(c, false)
	if err != nil {
		return err
	}
	defer d.Close()

	names := settings.Names
	if c.NArg() > 0 {
		names = []string{c.Args().First()}
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	for _, name := range sorted {
		v, err := d.provider.Get(c.Context, name)
		if err != nil {
			return err
		}
		if name == settings.SecretKey && v != "" {
			v = "********"
		}
		fmt.Fprintf(c.App.Writer, "%s=%s\n", name, v)
	}
	return nil
}

func runSettingsSet(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: offloader settings set <name> <value>", 2)
	}

	d, err := setup(c, false)
	if err != nil {
		return err
	}
	defer d.Close()

	name, value := c.Args().Get(0), c.Args().Get(1)
	if err := d.provider.Set(c.Context, name, value); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s updated\n", name)
	return nil
}
