package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestReceiveCountFromHeaders_MissingHeaderDefaultsToOne(t *testing.T) {
	count := receiveCountFromHeaders(amqp.Table{})
	assert.Equal(t, 1, count)
}

func TestReceiveCountFromHeaders_ReadsStampedValue(t *testing.T) {
	count := receiveCountFromHeaders(amqp.Table{headerReceiveCount: int32(4)})
	assert.Equal(t, 4, count)
}
