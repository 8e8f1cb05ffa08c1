package rabbitmq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	base := time.Second
	assert.Equal(t, time.Second, backoff(base, 1))
	assert.Equal(t, 4*time.Second, backoff(base, 3))
	assert.Equal(t, 60*time.Second, backoff(base, 10))
}

func TestAttemptFromHeaders(t *testing.T) {
	assert.Equal(t, 1, attemptFromHeaders(nil))
	assert.Equal(t, 1, attemptFromHeaders(amqp.Table{"x-other": "v"}))
	assert.Equal(t, 2, attemptFromHeaders(amqp.Table{
		"x-death": []interface{}{amqp.Table{}, amqp.Table{}},
	}))
}
