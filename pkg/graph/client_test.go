package graph

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigURI(t *testing.T) {
	assert.Equal(t, "bolt://localhost:7687", Config{Host: "localhost", Port: 7687}.URI())
	assert.Equal(t, "neo4j+s://graph.internal:7687", Config{Scheme: "neo4j+s", Host: "graph.internal", Port: 7687}.URI())
	assert.Equal(t, "bolt://[::1]:7687", Config{Host: "::1", Port: 7687}.URI())
}

func TestNewClient_DoesNotDial(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	client, err := NewClient(Config{
		Host:           "127.0.0.1",
		Port:           1,
		MaxPoolSize:    4,
		AcquireTimeout: 100 * time.Millisecond,
	}, logger)
	require.NoError(t, err)
	defer client.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, client.VerifyConnectivity(ctx))
}

func TestNewClient_RejectsUnknownScheme(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	_, err := NewClient(Config{Scheme: "http", Host: "localhost", Port: 7687}, logger)
	assert.Error(t, err)
}
