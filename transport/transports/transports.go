// Package transports registers every built-in tap transport with the
// default registry. Import it for its side effect.
package transports

import (
	"github.com/drblury/nanofix/transport/aws"
	"github.com/drblury/nanofix/transport/channel"
	"github.com/drblury/nanofix/transport/http"
	"github.com/drblury/nanofix/transport/io"
	"github.com/drblury/nanofix/transport/jetstream"
	"github.com/drblury/nanofix/transport/kafka"
	"github.com/drblury/nanofix/transport/nats"
	"github.com/drblury/nanofix/transport/rabbitmq"
)

func init() {
	aws.Register()
	channel.Register()
	http.Register()
	io.Register()
	jetstream.Register()
	kafka.Register()
	nats.Register()
	rabbitmq.Register()
}
