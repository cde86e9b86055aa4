package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yairfalse/ferry/internal/config"
	"github.com/yairfalse/ferry/internal/workflow"
)

// options holds the global flags. Only flags the user set override the config file.
type options struct {
	configPath  string
	region      string
	profile     string
	bucket      string
	queue       string
	metricsFile string
	private     bool
	skipCreate  bool
	dryRun      bool
	debug       bool
}

var (
	version = "0.1.0"
	opts    options
	rootCmd = &cobra.Command{
		Use:   "ferry [flags] <file>",
		Short: "Upload a file, notify the manager, keep it running",
		Long: `Ferry uploads a local file to S3, sends the object key to an SQS queue,
makes sure the EC2 instance tagged Name=manager is running, and prints an
inventory of zones, instances, buckets and stored objects.`,
		Example: `  ferry data.csv                          # Upload with defaults
  ferry --bucket my-uploads data.csv      # Different bucket
  ferry --private --skip-create data.csv  # Private object, bucket and queue must exist
  ferry --dry-run data.csv                # Do not start the manager
  ferry --config ferry.toml data.csv      # Load settings from a file`,
		Args:          cobra.ExactArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runUpload,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`ferry {{.Version}}
`)

	opts.bindFlags(rootCmd.PersistentFlags())
}

func (o *options) bindFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.configPath, "config", "c", "", "Config file (.toml, .yaml or .yml)")
	flags.StringVar(&o.region, "region", "", "AWS region")
	flags.StringVar(&o.profile, "profile", "", "AWS shared config profile")
	flags.StringVar(&o.bucket, "bucket", "", "S3 bucket to upload to")
	flags.StringVar(&o.queue, "queue", "", "SQS queue to notify")
	flags.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	flags.BoolVar(&o.private, "private", false, "Upload without the public-read ACL")
	flags.BoolVar(&o.skipCreate, "skip-create", false, "Do not create the bucket or queue")
	flags.BoolVar(&o.dryRun, "dry-run", false, "Decide on the manager but never start it")
	flags.BoolVar(&o.debug, "debug", false, "Enable debug logging")
}

// loadConfig reads the config file and applies the flags the user set.
func (o *options) loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	o.apply(cfg, flags.Changed)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (o *options) apply(cfg *config.Config, changed func(string) bool) {
	if changed("region") {
		cfg.AWS.Region = o.region
	}
	if changed("profile") {
		cfg.AWS.Profile = o.profile
	}
	if changed("bucket") {
		cfg.Storage.Bucket = o.bucket
	}
	if changed("queue") {
		cfg.Queue.Name = o.queue
	}
	if changed("metrics-file") {
		cfg.OTEL.Metrics.Textfile = o.metricsFile
	}
	if o.private {
		cfg.Storage.PublicRead = false
	}
	if o.skipCreate {
		cfg.Storage.Create = false
		cfg.Queue.Create = false
	}
	if o.dryRun {
		cfg.Manager.DryRun = true
	}
	if o.debug {
		cfg.Log.Level = "debug"
	}
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := opts.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	rc, err := workflow.NewRunContext(args[0], cfg)
	if err != nil {
		return err
	}

	return withSession(cmd, cfg, func(s *session) error {
		return runGroup(cmd.Context(), func(ctx context.Context) error {
			return s.runner.Run(ctx, rc).Err()
		})
	})
}
