package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/wham/pbts/internal/compiler"
	"github.com/wham/pbts/internal/config"
	"github.com/wham/pbts/internal/logs"
	"github.com/wham/pbts/internal/tempdir"
	"github.com/wham/pbts/internal/watch"
	"github.com/wham/pbts/pkg/grpc"
	"github.com/wham/pbts/pkg/schema"
	"github.com/wham/pbts/pkg/typescript"
)

const reflectTimeout = 30 * time.Second

type generateFlags struct {
	config        string
	descriptorSet string
	protoDir      string
	reflect       string
	out           string
	watch         bool
}

func newGenerateCmd() *cobra.Command {
	var flags generateFlags

	cmd := &cobra.Command{
		Use:   "generate [files...]",
		Short: "Generate the TypeScript declaration module",
		Long: `Generate the TypeScript declaration module for a schema.

Settings are read from pbts.json when present. PBTS_REFLECT and PBTS_OUT
override the file, and flags override both. When several sources are set,
--reflect wins over --descriptor-set, which wins over --proto-dir.

Files given as arguments are compiled relative to --proto-dir. Without them
every .proto file under --proto-dir is compiled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguration(cmd, flags, args)
			if err != nil {
				return err
			}
			if flags.watch {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return runWatch(ctx, cfg, cmd.OutOrStdout())
			}
			return runGenerate(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.config, "config", "c", config.DefaultPath, "Configuration file")
	cmd.Flags().StringVar(&flags.descriptorSet, "descriptor-set", "", "Binary FileDescriptorSet to read")
	cmd.Flags().StringVar(&flags.protoDir, "proto-dir", "", "Directory of .proto sources to compile with protoc")
	cmd.Flags().StringVar(&flags.reflect, "reflect", "", "gRPC server to query with server reflection, e.g. http://localhost:50051")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "Regenerate when the inputs change")

	return cmd
}

// loadConfiguration merges the configuration file with the flags that were
// set explicitly.
func loadConfiguration(cmd *cobra.Command, flags generateFlags, args []string) (*config.Configuration, error) {
	cfg, logger, err := config.Load(flags.config)
	if err != nil {
		return nil, err
	}
	if logger.HasErrors() {
		return nil, errors.WithDetail(
			errors.Newf("invalid configuration file %s: %s", flags.config, strings.Join(logger.Errors(), "; ")),
			logs.Format(logger.Logs()))
	}

	changed := cmd.Flags().Changed
	if changed("descriptor-set") {
		cfg.DescriptorSet = flags.descriptorSet
	}
	if changed("proto-dir") {
		cfg.ProtoDir = flags.protoDir
	}
	if changed("reflect") {
		cfg.Reflect = flags.reflect
	}
	if changed("out") {
		cfg.Out = flags.out
	}
	if len(args) > 0 {
		cfg.Files = args
	}
	return cfg, nil
}

func runGenerate(ctx context.Context, cfg *config.Configuration, stdout io.Writer) error {
	source, err := cfg.Resolve()
	if err != nil {
		return err
	}

	set, err := loadDescriptorSet(ctx, cfg, source)
	if err != nil {
		return err
	}

	content, err := typescript.Generate(schema.FromFileDescriptorSet(set), typescript.Options(cfg.Options))
	if err != nil {
		return err
	}

	return writeOutput(cfg.Out, content, stdout)
}

func loadDescriptorSet(ctx context.Context, cfg *config.Configuration, source config.Source) (*descriptorpb.FileDescriptorSet, error) {
	slog.Debug("Loading schema", "source", source)

	switch source {
	case config.SourceReflect:
		client, err := grpc.NewReflectionClientFromString(cfg.Reflect)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(ctx, reflectTimeout)
		defer cancel()
		result, err := client.Discover(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to discover schema from %s", cfg.Reflect)
		}
		slog.Info("Discovered services", "count", len(result.Services), "files", len(result.Files.GetFile()))
		return result.Files, nil

	case config.SourceDescriptorSet:
		return schema.LoadDescriptorSetFile(cfg.DescriptorSet)

	case config.SourceProtoDir:
		tempdir.StartCleanup()
		c := compiler.New()
		set, err := c.Compile(ctx, cfg.ProtoDir, cfg.Files)
		if err != nil {
			return nil, errors.WithDetail(err, logs.Format(c.Logger().Logs()))
		}
		return set, nil

	default:
		return nil, errors.Newf("unsupported source %s", source)
	}
}

func writeOutput(path, content string, stdout io.Writer) error {
	if path == "" {
		_, err := io.WriteString(stdout, content)
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	slog.Info("Wrote TypeScript declarations", "path", path)
	return nil
}

// watchedPaths lists the files whose changes trigger regeneration.
func watchedPaths(cfg *config.Configuration, source config.Source) ([]string, error) {
	switch source {
	case config.SourceDescriptorSet:
		return []string{cfg.DescriptorSet}, nil
	case config.SourceProtoDir:
		files, err := compiler.FindProtoFiles(cfg.ProtoDir)
		if err != nil {
			return nil, err
		}
		paths := make([]string, 0, len(files))
		for _, f := range files {
			paths = append(paths, filepath.Join(cfg.ProtoDir, filepath.FromSlash(f)))
		}
		return paths, nil
	default:
		return nil, errors.WithHint(
			errors.Newf("cannot watch a %s source", source),
			"use --descriptor-set or --proto-dir with --watch")
	}
}

// runWatch generates once and then again on every change until ctx is done.
// Failures after the first run are logged and do not stop watching.
func runWatch(ctx context.Context, cfg *config.Configuration, stdout io.Writer) error {
	source, err := cfg.Resolve()
	if err != nil {
		return err
	}
	paths, err := watchedPaths(cfg, source)
	if err != nil {
		return err
	}

	if err := runGenerate(ctx, cfg, stdout); err != nil {
		return err
	}

	watcher, err := watch.New(paths...)
	if err != nil {
		return err
	}
	defer watcher.Close()

	unsubscribe := watcher.Subscribe(func() {
		slog.Info("Inputs changed, regenerating")
		if err := runGenerate(ctx, cfg, stdout); err != nil {
			slog.Error("Generation failed", "error", err)
		}
	})
	defer unsubscribe()

	slog.Info(fmt.Sprintf("Watching %d file(s), press Ctrl+C to stop", len(paths)))
	<-ctx.Done()
	return nil
}
