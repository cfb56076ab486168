package notify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// Topic carries committed notifications to every process' Hub.
const Topic = "notifications"

const (
	BrokerGoChannel = "gochannel"
	BrokerRedis     = "redis"
	BrokerKafka     = "kafka"
)

type BrokerConfig struct {
	Kind         string
	RedisAddr    string
	KafkaBrokers []string
	// InstanceID makes the Kafka consumer group unique so every process sees every message.
	InstanceID string
}

// Broker bundles the publisher the dispatcher writes to and the subscriber the Hub reads.
type Broker struct {
	Kind       string
	Publisher  message.Publisher
	Subscriber message.Subscriber
	closers    []func() error
}

func NewBroker(cfg BrokerConfig, logger watermill.LoggerAdapter) (*Broker, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	switch kind {
	case "", BrokerGoChannel:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		return &Broker{Kind: BrokerGoChannel, Publisher: ch, Subscriber: ch, closers: []func() error{ch.Close}}, nil

	case BrokerRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis broker needs REDIS_ADDR")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, logger)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis publisher: %w", err)
		}
		// no consumer group: every subscriber reads the whole stream
		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{Client: client}, logger)
		if err != nil {
			_ = publisher.Close()
			_ = client.Close()
			return nil, fmt.Errorf("redis subscriber: %w", err)
		}
		return &Broker{
			Kind:       BrokerRedis,
			Publisher:  publisher,
			Subscriber: subscriber,
			closers:    []func() error{subscriber.Close, publisher.Close, client.Close},
		}, nil

	case BrokerKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka broker needs KAFKA_BROKERS")
		}
		marshaler := kafka.DefaultMarshaler{}
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			Marshaler: marshaler,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}

		saramaConfig := kafka.DefaultSaramaSubscriberConfig()
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
		saramaConfig.ClientID = "loadmatch"
		instance := cfg.InstanceID
		if instance == "" {
			instance = watermill.NewShortUUID()
		}
		subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               cfg.KafkaBrokers,
			Unmarshaler:           marshaler,
			ConsumerGroup:         "loadmatch-notify-" + instance,
			OverwriteSaramaConfig: saramaConfig,
		}, logger)
		if err != nil {
			_ = publisher.Close()
			return nil, fmt.Errorf("kafka subscriber: %w", err)
		}
		return &Broker{
			Kind:       BrokerKafka,
			Publisher:  publisher,
			Subscriber: subscriber,
			closers:    []func() error{subscriber.Close, publisher.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown NOTIFY_BROKER %q", cfg.Kind)
	}
}

func (b *Broker) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
