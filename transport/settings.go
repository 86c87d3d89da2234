package transport

// Settings is a plain Config for building a tap transport without a client
// config, for example from a standalone tap consumer or a test.
type Settings struct {
	PubSubSystem string

	KafkaBrokers       []string
	KafkaConsumerGroup string

	RabbitMQURL string

	NATSURL         string
	JetStreamStream string

	HTTPServerAddress string
	HTTPPublisherURL  string

	IOFile string

	AWSRegion          string
	AWSAccountID       string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpoint        string
}

var _ Config = Settings{}

func (s Settings) GetPubSubSystem() string       { return s.PubSubSystem }
func (s Settings) GetKafkaBrokers() []string     { return s.KafkaBrokers }
func (s Settings) GetKafkaConsumerGroup() string { return s.KafkaConsumerGroup }
func (s Settings) GetRabbitMQURL() string        { return s.RabbitMQURL }
func (s Settings) GetNATSURL() string            { return s.NATSURL }
func (s Settings) GetJetStreamStream() string    { return s.JetStreamStream }
func (s Settings) GetHTTPServerAddress() string  { return s.HTTPServerAddress }
func (s Settings) GetHTTPPublisherURL() string   { return s.HTTPPublisherURL }
func (s Settings) GetIOFile() string             { return s.IOFile }
func (s Settings) GetAWSRegion() string          { return s.AWSRegion }
func (s Settings) GetAWSAccountID() string       { return s.AWSAccountID }
func (s Settings) GetAWSAccessKeyID() string     { return s.AWSAccessKeyID }
func (s Settings) GetAWSSecretAccessKey() string { return s.AWSSecretAccessKey }
func (s Settings) GetAWSEndpoint() string        { return s.AWSEndpoint }
