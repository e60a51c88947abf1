//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/househelp-server/internal/model"
	repo "github.com/dtroode/househelp-server/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "househelp_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/househelp_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestAnchorJournal_RecordAndListOrphaned(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()
	conn, err := repo.NewConection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	journal := repo.NewAnchorJournalRepository(conn)
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, journal.Record(ctx, model.AnchorEntry{
		Namespace: "jobs", Account: "GA", Key: "jobs_1", CID: "bafk-anchored", TxHash: "h1",
		Status: model.AnchorStatusAnchored, CreatedAt: now,
	}))
	require.NoError(t, journal.Record(ctx, model.AnchorEntry{
		Namespace: "work-history", Account: "GB", CID: "bafk-old",
		Status: model.AnchorStatusOrphaned, Error: "tx_failed", CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, journal.Record(ctx, model.AnchorEntry{
		Namespace: "attestations", Account: "GC", CID: "bafk-new",
		Status: model.AnchorStatusOrphaned, Error: "tx_bad_seq", CreatedAt: now,
	}))

	orphans, err := journal.ListOrphaned(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orphans, 2)
	require.Equal(t, "bafk-new", orphans[0].CID)
	require.Equal(t, "bafk-old", orphans[1].CID)

	// Migrations are idempotent.
	again, err := repo.NewConection(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}
