package payment

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polkiloo/agrilink/internal/config"
)

func TestNewGatewayFallsBackToMock(t *testing.T) {
	var logs bytes.Buffer
	g, err := newGateway(gatewayParams{
		Config: &config.Config{PaymentReferencePrefix: "TEST", PaymentSecretKey: "sk"},
		Logger: slog.New(slog.NewJSONHandler(&logs, nil)),
	})
	require.NoError(t, err)

	mock, ok := g.(*MockGateway)
	require.True(t, ok)
	assert.Equal(t, "TEST", mock.refs.Prefix())
	assert.Contains(t, logs.String(), "in-process gateway")
}

func TestNewGatewayUsesPaystack(t *testing.T) {
	g, err := newGateway(gatewayParams{
		Config: &config.Config{
			PaymentGatewayURL: "https://api.paystack.co",
			PaymentSecretKey:  "sk",
			PaymentPublicKey:  "pk",
		},
		Logger: slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)),
	})
	require.NoError(t, err)
	_, ok := g.(*PaystackGateway)
	assert.True(t, ok)

	_, err = newGateway(gatewayParams{
		Config: &config.Config{PaymentGatewayURL: "https://api.paystack.co"},
		Logger: slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)),
	})
	assert.Error(t, err)
}
