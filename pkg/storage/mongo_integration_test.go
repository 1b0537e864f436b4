//go:build integration

package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shipcost/shipcost/pkg/dataset"
)

var mongoURI string

// TestMain starts a MongoDB container shared by the integration tests.
func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start MongoDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}
	mongoURI = fmt.Sprintf("mongodb://%s:%s", host, port.Port())

	code := m.Run()

	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestMongoStoreInsertAndFetch(t *testing.T) {
	ctx := context.Background()
	store, err := NewMongoStore(ctx, mongoURI)
	require.NoError(t, err)
	defer store.Close(ctx)

	_, err = store.FetchTable(ctx, "shipmentdata", "empty")
	assert.ErrorIs(t, err, ErrEmptyCollection)

	tbl := dataset.MustTable(
		[]string{"Height", "Material", "Cost"},
		[][]string{{"12.5", "Brass", "100"}, {"7", "Clay", ""}},
	)
	store.SetNumericColumns("Height", "Cost")
	require.NoError(t, store.InsertTable(ctx, tbl, "shipmentdata", "ship"))

	got, err := store.FetchTable(ctx, "shipmentdata", "ship")
	require.NoError(t, err)
	assert.Equal(t, []string{"Height", "Material", "Cost"}, got.Columns)
	assert.Equal(t, 2, got.Len())
	assert.Equal(t, []string{"12.5", "Brass", "100"}, got.Rows[0])
	assert.Equal(t, "", got.Rows[1][2])
}
