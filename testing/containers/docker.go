//go:build integration

// Package containers starts disposable database servers for integration tests.
// Tests calling into it are skipped when no Docker daemon is reachable.
package containers

import (
	"context"

	"github.com/testcontainers/testcontainers-go"
)

// dockerAvailable reports whether the testcontainers Docker provider can reach a daemon.
func dockerAvailable(ctx context.Context) bool {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}
