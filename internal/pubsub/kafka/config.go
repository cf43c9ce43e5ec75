package kafka

import (
	"crypto/tls"
	"time"

	"github.com/Shopify/sarama"
	"github.com/parcelbase/parcelbase/internal/config"
)

// SaramaConfig builds the client config shared by the publisher and subscriber
func SaramaConfig(cfg *config.Configuration) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_1_0_0
	sc.ClientID = cfg.Kafka.ClientID

	// a new consumer group starts from the oldest retained status event
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Offsets.AutoCommit.Interval = 5 * time.Second
	sc.Consumer.Offsets.Retry.Max = 3

	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll

	if cfg.Kafka.TLS {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if !cfg.Kafka.UseSASL {
		return sc
	}

	sc.Net.SASL.Enable = true
	sc.Net.TLS.Enable = true
	if sc.Net.TLS.Config == nil {
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	sc.Net.SASL.Mechanism = sarama.SASLMechanism(cfg.Kafka.SASLMechanism)
	sc.Net.SASL.User = cfg.Kafka.SASLUser
	sc.Net.SASL.Password = cfg.Kafka.SASLPassword

	return sc
}
