package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitKafkaProducer_NoBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	for _, brokers := range [][]string{nil, {}, {"", ""}} {
		producer, err := initKafkaProducer(brokers, "encontrar-test", logger)
		require.NoError(t, err)
		assert.Nil(t, producer)
	}
}

func TestInitKafkaProducer_UnreachableBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer([]string{"127.0.0.1:1", "127.0.0.1:2"}, "encontrar-test", logger)
	require.Error(t, err)
	assert.Nil(t, producer)
}

func TestCloseKafka_NilProducer(t *testing.T) {
	assert.NotPanics(t, func() {
		closeKafka(nil, log.WithField("test", "kafka"))
	})
}
