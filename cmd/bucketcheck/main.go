// Command bucketcheck runs the bucket-offset kernel on an accelerator and
// verifies it against the host.
//
// Usage:
//
//	bucketcheck [--seed 2] [--length 256] [--backend native] [--timeout 5s]
//	bucketcheck backends
//
// Build with -tags rust to include the wgpu-native backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gogpu/bucketoffset/internal/cli"

	_ "github.com/gogpu/bucketoffset/backend/native"
	_ "github.com/gogpu/bucketoffset/backend/rust"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bucketcheck: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
