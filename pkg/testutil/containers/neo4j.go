//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcneo4j "github.com/testcontainers/testcontainers-go/modules/neo4j"
)

// Neo4jContainer wraps a testcontainers Neo4j instance.
type Neo4jContainer struct {
	Container testcontainers.Container
	URI       string
	Password  string
}

// NewNeo4jContainer starts a Neo4j container and waits until bolt is
// reachable.
func NewNeo4jContainer(t *testing.T) *Neo4jContainer {
	t.Helper()

	ctx := context.Background()
	const password = "integration-test"

	container, err := tcneo4j.Run(ctx, "neo4j:5",
		tcneo4j.WithAdminPassword(password),
	)
	if err != nil {
		t.Fatalf("failed to start neo4j container: %v", err)
	}

	uri, err := container.BoltUrl(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get neo4j bolt url: %v", err)
	}

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	return &Neo4jContainer{
		Container: container,
		URI:       uri,
		Password:  password,
	}
}
