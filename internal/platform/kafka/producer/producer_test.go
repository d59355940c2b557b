package producer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(DefaultConfig("  "), nil)
	require.Error(t, err)
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers(" a:9092, ,b:9092 "))
}

func TestLogProducerAcceptsEverything(t *testing.T) {
	p := NewLogProducer(nil)
	require.NoError(t, p.Produce(context.Background(), &Message{Topic: "t", Key: []byte("k")}))
}
