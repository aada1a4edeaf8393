package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)
}

func TestInitWithoutExportersIsNoop(t *testing.T) {
	r := require.New(t)
	shutdown, err := Init(context.Background(), Config{ServiceName: "lendingd"})
	r.NoError(err)
	r.NotNil(shutdown)
	r.NoError(shutdown(context.Background()))
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" x-api-key = abc ,broken, =skip,tenant=lending")
	require.Equal(t, map[string]string{"x-api-key": "abc", "tenant": "lending"}, headers)
}
