package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	cli "github.com/jawher/mow.cli"
	log "github.com/sirupsen/logrus"

	"github.com/adjust-tools/callback-snapshot-manager/adjust"
	"github.com/adjust-tools/callback-snapshot-manager/callback"
	"github.com/adjust-tools/callback-snapshot-manager/reconcile"
	s3client "github.com/adjust-tools/callback-snapshot-manager/s3"
	"github.com/adjust-tools/callback-snapshot-manager/snapshot"
)

const appName = "callback-snapshot-manager"
const appDescription = "Snapshots, restores and bulk-edits Adjust callback configuration"

// archiver keeps off-site copies of snapshot documents.
type archiver interface {
	UploadSnapshot(ctx context.Context, key string, doc []byte) error
	DownloadSnapshot(ctx context.Context, key string) ([]byte, bool, error)
}

func main() {
	app := cli.App(appName, appDescription)

	apiURL := app.String(cli.StringOpt{
		Name:   "api-url",
		Value:  adjust.DefaultBaseURL,
		Desc:   "Adjust dashboard API base URL",
		EnvVar: "ADJUST_API_URL",
	})
	email := app.String(cli.StringOpt{
		Name:   "email",
		Desc:   "Adjust account email",
		EnvVar: "ADJUST_EMAIL",
	})
	password := app.String(cli.StringOpt{
		Name:   "password",
		Desc:   "Adjust account password",
		EnvVar: "ADJUST_PASSWORD",
	})
	logLevel := app.String(cli.StringOpt{
		Name:   "log-level",
		Value:  "info",
		Desc:   "Log level (debug, info, warn, error)",
		EnvVar: "LOG_LEVEL",
	})

	app.Before = func() {
		level, err := log.ParseLevel(*logLevel)
		if err != nil {
			level = log.InfoLevel
			log.WithField("logLevel", *logLevel).Warn("Unknown log level, defaulting to info")
		}
		log.SetLevel(level)
	}

	newGateway := func() *adjust.Client {
		client, err := adjust.NewClient(*apiURL, *email, *password, nil)
		if err != nil {
			log.WithError(err).Error("Cannot create Adjust API client")
			cli.Exit(1)
		}
		return client
	}

	app.Command("snapshot", "Manage callback snapshots", func(cmd *cli.Cmd) {
		cmd.Command("create", "Capture all configured callbacks into a local snapshot file", func(create *cli.Cmd) {
			path := create.String(cli.StringOpt{Name: "snapshot s", Value: "snapshot.yaml", Desc: "Snapshot file path"})
			environment := create.String(cli.StringOpt{
				Name:   "environment",
				Value:  "production",
				Desc:   "Source environment identifier stored in the snapshot",
				EnvVar: "ADJUST_ENVIRONMENT",
			})
			force := create.Bool(cli.BoolOpt{Name: "force f", Desc: "Overwrite an existing snapshot file"})
			archiveBucket := create.String(cli.StringOpt{
				Name:   "archive-bucket",
				Desc:   "S3 bucket to archive the snapshot document in",
				EnvVar: "SNAPSHOT_ARCHIVE_BUCKET",
			})
			awsRegion := create.String(cli.StringOpt{Name: "aws-region", Value: "eu-west-1", Desc: "AWS region of the archive bucket", EnvVar: "AWS_REGION"})

			create.Action = func() {
				arch := mustArchiver(*archiveBucket, *awsRegion)
				if err := runCreate(context.Background(), newGateway(), arch, *path, *environment, *force); err != nil {
					log.WithError(err).Error("Snapshot create failed")
					cli.Exit(1)
				}
			}
		})

		cmd.Command("restore", "Reconcile the dashboard back to a local snapshot", func(restore *cli.Cmd) {
			path := restore.String(cli.StringOpt{Name: "snapshot s", Value: "snapshot.yaml", Desc: "Snapshot file path"})
			dryRun := restore.Bool(cli.BoolOpt{Name: "dry-run n", Desc: "Compute the delta without submitting mutations"})
			archiveBucket := restore.String(cli.StringOpt{
				Name:   "archive-bucket",
				Desc:   "S3 bucket to fall back to when the snapshot file is missing locally",
				EnvVar: "SNAPSHOT_ARCHIVE_BUCKET",
			})
			awsRegion := restore.String(cli.StringOpt{Name: "aws-region", Value: "eu-west-1", Desc: "AWS region of the archive bucket", EnvVar: "AWS_REGION"})

			restore.Action = func() {
				arch := mustArchiver(*archiveBucket, *awsRegion)
				report, err := runRestore(context.Background(), newGateway(), arch, *path, *dryRun)
				if err != nil {
					log.WithError(err).Error("Snapshot restore failed")
					cli.Exit(1)
				}
				if !report.Ok() {
					log.Errorf("%d mutations failed, remote state is only partially reconciled", len(report.Failures))
					cli.Exit(1)
				}
			}
		})

		cmd.Command("modify", "Bulk-edit placeholders across a filtered subset of a local snapshot", func(modify *cli.Cmd) {
			path := modify.String(cli.StringOpt{Name: "snapshot s", Value: "snapshot.yaml", Desc: "Snapshot file path"})
			havingApp := modify.Strings(cli.StringsOpt{Name: "having-app", Desc: "Only modify callbacks of apps named NAME"})
			havingAppToken := modify.Strings(cli.StringsOpt{Name: "having-app-token", Desc: "Only modify callbacks of apps with token TOKEN"})
			havingEvent := modify.Strings(cli.StringsOpt{Name: "having-event", Desc: "Only modify callbacks of custom events named EVENT"})
			havingDomain := modify.Strings(cli.StringsOpt{Name: "having-domain", Desc: "Only modify callbacks whose URL domain is DOMAIN"})
			havingPath := modify.Strings(cli.StringsOpt{Name: "having-path", Desc: "Only modify callbacks whose URL path is PATH"})
			matchingApp := modify.Strings(cli.StringsOpt{Name: "matching-app", Desc: "Only modify callbacks whose app name matches REGEX"})
			matchingDomain := modify.Strings(cli.StringsOpt{Name: "matching-domain", Desc: "Only modify callbacks whose URL domain matches REGEX"})
			matchingPath := modify.Strings(cli.StringsOpt{Name: "matching-path", Desc: "Only modify callbacks whose URL path matches REGEX"})
			havingPlaceholder := modify.Strings(cli.StringsOpt{Name: "having-placeholder", Desc: "Only modify callbacks already carrying placeholder PH"})
			matchingPlaceholder := modify.Strings(cli.StringsOpt{Name: "matching-placeholder", Desc: "Only modify callbacks carrying a placeholder matching REGEX"})
			missingPlaceholder := modify.String(cli.StringOpt{Name: "missing-placeholder", Desc: "Only modify callbacks not carrying placeholder PH"})
			add := modify.Strings(cli.StringsOpt{Name: "add-placeholder a", Desc: "Add placeholder PH to all selected callbacks"})
			remove := modify.Strings(cli.StringsOpt{Name: "remove-placeholder r", Desc: "Remove placeholder PH from all selected callbacks"})
			remoteVocabulary := modify.Bool(cli.BoolOpt{Name: "remote-vocabulary", Desc: "Validate placeholders against the live Adjust list instead of the built-in one"})
			dryRun := modify.Bool(cli.BoolOpt{Name: "dry-run n", Desc: "Report what would change without rewriting the snapshot"})

			modify.Action = func() {
				if len(*add)+len(*remove) == 0 {
					log.Error("Nothing to do: pass --add-placeholder and/or --remove-placeholder")
					cli.Exit(1)
				}
				spec := callback.Spec{
					Apps:               *havingApp,
					AppTokens:          *havingAppToken,
					Events:             *havingEvent,
					Domains:            *havingDomain,
					Paths:              *havingPath,
					MatchApps:          mustCompilePatterns("--matching-app", *matchingApp),
					MatchDomains:       mustCompilePatterns("--matching-domain", *matchingDomain),
					MatchPaths:         mustCompilePatterns("--matching-path", *matchingPath),
					HasPlaceholders:    *havingPlaceholder,
					MatchPlaceholders:  mustCompilePatterns("--matching-placeholder", *matchingPlaceholder),
					MissingPlaceholder: *missingPlaceholder,
				}
				vocab := callback.DefaultVocabulary()
				if *remoteVocabulary {
					names, err := newGateway().Placeholders(context.Background())
					if err != nil {
						log.WithError(err).Error("Cannot fetch the remote placeholder vocabulary")
						cli.Exit(1)
					}
					vocab = callback.NewVocabulary(names...)
				}
				changed, err := runModify(*path, spec, *add, *remove, vocab, *dryRun)
				if err != nil {
					log.WithError(err).Error("Snapshot modify failed")
					cli.Exit(1)
				}
				switch {
				case changed == 0:
					log.Warn("No callbacks were modified")
				case *dryRun:
					log.Infof("Would have updated %d callbacks", changed)
				default:
					log.Infof("Updated %d callbacks", changed)
				}
			}
		})
	})

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("Cannot run the application")
	}
}

func mustCompilePatterns(flag string, patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		p, err := regexp.Compile(pattern)
		if err != nil {
			log.WithError(err).Errorf("Invalid %s pattern", flag)
			cli.Exit(1)
		}
		compiled = append(compiled, p)
	}
	return compiled
}

func mustArchiver(bucket, awsRegion string) archiver {
	if bucket == "" {
		return nil
	}
	client, err := s3client.NewClient(bucket, awsRegion)
	if err != nil {
		log.WithError(err).Error("Cannot create the snapshot archive client")
		cli.Exit(1)
	}
	return client
}

func runCreate(ctx context.Context, gw reconcile.Gateway, arch archiver, path, environment string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("snapshot file %q already exists, use --force to overwrite", path)
		}
	}
	records, err := gw.List(ctx)
	if err != nil {
		return err
	}
	captured := snapshot.New(environment, records)

	var doc bytes.Buffer
	if err = snapshot.Store(&doc, captured); err != nil {
		return err
	}
	if err = os.WriteFile(path, doc.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing snapshot file: %w", err)
	}
	if arch != nil {
		if err = arch.UploadSnapshot(ctx, filepath.Base(path), doc.Bytes()); err != nil {
			return err
		}
	}
	log.Infof("Captured %d callbacks into %s", len(records), path)
	return nil
}

func runRestore(ctx context.Context, gw reconcile.Gateway, arch archiver, path string, dryRun bool) (reconcile.Report, error) {
	target, err := loadTarget(ctx, arch, path)
	if err != nil {
		return reconcile.Report{}, err
	}

	current, err := gw.List(ctx)
	if err != nil {
		return reconcile.Report{}, err
	}
	remote := snapshot.Snapshot{Records: current}
	if err = remote.Validate(); err != nil {
		return reconcile.Report{}, fmt.Errorf("remote state conflicts with itself: %w", err)
	}

	diff := snapshot.Diff(remote, target)
	if diff.Empty() {
		log.Info("Remote state already matches the snapshot")
		return reconcile.Report{}, nil
	}
	log.Infof("Snapshot delta: %s", diff.Summary())
	if dryRun {
		log.Info("Dry run, no mutations submitted")
		return reconcile.Report{}, nil
	}

	report := reconcile.Apply(ctx, diff, gw)
	log.Infof("Restore finished: %s", report.Summary())
	return report, nil
}

func loadTarget(ctx context.Context, arch archiver, path string) (snapshot.Snapshot, error) {
	if _, err := os.Stat(path); err == nil {
		return snapshot.ReadFile(path)
	}
	if arch == nil {
		return snapshot.Snapshot{}, fmt.Errorf("snapshot file %q does not exist", path)
	}
	doc, found, err := arch.DownloadSnapshot(ctx, filepath.Base(path))
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	if !found {
		return snapshot.Snapshot{}, fmt.Errorf("snapshot %q found neither locally nor in the archive", path)
	}
	return snapshot.Load(bytes.NewReader(doc))
}

// runModify validates the tokens, edits the selected records and
// supersedes the snapshot file. A validation failure aborts before any
// write, leaving the original document untouched.
func runModify(path string, spec callback.Spec, add, remove []string, vocab callback.Vocabulary, dryRun bool) (int, error) {
	original, err := snapshot.ReadFile(path)
	if err != nil {
		return 0, err
	}

	selected := callback.Select(original.Records, spec)
	if len(selected) == 0 {
		log.Warn("The filter matched no callbacks")
	}

	editor := callback.NewEditor(vocab)
	records := original.Records
	if len(add) > 0 {
		records, _, err = editor.Add(records, selected, add...)
		if err != nil {
			return 0, err
		}
	}
	if len(remove) > 0 {
		records, _, err = editor.Remove(records, selected, remove...)
		if err != nil {
			return 0, err
		}
	}

	changed := 0
	for i := range records {
		if !sameRecord(records[i], original.Records[i]) {
			changed++
		}
	}
	if dryRun || changed == 0 {
		return changed, nil
	}

	edited := original
	edited.Records = records
	return changed, snapshot.WriteFile(path, edited)
}

func sameRecord(a, b callback.Record) bool {
	return a.URL == b.URL && a.Enabled == b.Enabled && slices.Equal(a.Placeholders, b.Placeholders)
}
