package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gitlab.com/timkado/api/prebid-cache-service/internal/bootstrap"
	"gitlab.com/timkado/api/prebid-cache-service/pkg/contextkeys"
)

// lambdaRuntimeEnv is set by the Lambda execution environment.
const lambdaRuntimeEnv = "AWS_LAMBDA_RUNTIME_API"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "prebid-cache-service",
		Short:         "Prebid Server cache backed by ElastiCache",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if os.Getenv(lambdaRuntimeEnv) != "" {
				return run(cmd.Context(), runLambda)
			}
			return run(cmd.Context(), runHTTP)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "lambda",
			Short: "Serve ALB and API Gateway invocations through the Lambda runtime",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), runLambda)
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the cache API over HTTP with an optional gRPC health endpoint",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), runHTTP)
			},
		},
	)
	return root
}

func runLambda(ctx context.Context, app *bootstrap.App) error { return app.RunLambda(ctx) }

func runHTTP(ctx context.Context, app *bootstrap.App) error { return app.Run(ctx) }

func run(ctx context.Context, start func(context.Context, *bootstrap.App) error) error {
	ctx = context.WithValue(ctx, contextkeys.RequestIDKey, "app-main")

	app, cleanup, err := bootstrap.InitializeApp(ctx)
	if err != nil {
		// The application logger is not available yet.
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		return err
	}
	defer cleanup()

	if err := start(ctx, app); err != nil {
		fmt.Fprintf(os.Stderr, "Application run failed: %v\n", err)
		return err
	}
	return nil
}
