package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-delivery/internal/config"
)

func TestURIEscapesCredentials(t *testing.T) {
	uri := URI(config.RabbitMQConfig{Host: "mq", Port: 5672, User: "guest", Password: "p@ss/w%rd:1"})

	got, err := amqp.ParseURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "amqp", got.Scheme)
	assert.Equal(t, "mq", got.Host)
	assert.Equal(t, 5672, got.Port)
	assert.Equal(t, "guest", got.Username)
	assert.Equal(t, "p@ss/w%rd:1", got.Password)
	assert.Equal(t, "/", got.Vhost)
}

func TestURITLSAndVHost(t *testing.T) {
	got, err := amqp.ParseURI(URI(config.RabbitMQConfig{Host: "mq", Port: 5671, User: "u", Password: "p", VHost: "grocery", UseTLS: true}))
	require.NoError(t, err)
	assert.Equal(t, "amqps", got.Scheme)
	assert.Equal(t, "grocery", got.Vhost)
}
