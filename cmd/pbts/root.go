package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "pbts",
		Short: "Generate TypeScript declarations from protobuf schemas",
		Long: `Generate a TypeScript ambient declaration module from a protobuf schema.

The schema can come from a binary descriptor set (protoc --descriptor_set_out),
from .proto sources compiled with protoc, or from a running gRPC server with
server reflection enabled.

Examples:
  pbts generate --descriptor-set build/schema.pb --out types/schema.d.ts
  pbts generate --proto-dir proto
  pbts generate --reflect http://localhost:50051
  pbts generate --proto-dir proto --watch --out types/schema.d.ts
  pbts targets`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			// stdout may carry the generated module
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newTargetsCmd())
	return root
}
