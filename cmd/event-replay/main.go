package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
)

const (
	defaultGroup       = "orderdesk-event-replay"
	defaultIdleTimeout = 5 * time.Second
	envKafkaBrokers    = "ORDERDESK_KAFKA_BROKERS"
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	group       string
	fromOldest  bool
	toOriginal  bool
	idleTimeout time.Duration
	maxRetries  int
}

// replayConsumer — то, что нужно от kafka.Consumer для одного прогона.
type replayConsumer interface {
	Start(ctx context.Context) error
	Stop() error
}

// replayPublisher пишет исходные байты события в другой topic.
type replayPublisher interface {
	PublishRaw(ctx context.Context, topic, key string, value []byte, headers ...sarama.RecordHeader) error
	Close() error
}

type replayStats struct {
	seen      atomic.Int64
	replayed  atomic.Int64
	malformed atomic.Int64
}

var newReplayPublisher = func(cfg config) (replayPublisher, error) {
	return kafka.NewProducer(cfg.brokers)
}

var newReplayConsumer = func(cfg config, handler kafka.MessageHandler) (replayConsumer, error) {
	opts := []kafka.ConsumerOption{
		kafka.WithMaxRetries(cfg.maxRetries),
		kafka.WithConsumerLogger(log.WithField("component", "event-replay-consumer")),
	}
	if cfg.fromOldest {
		opts = append(opts, kafka.WithOldestOffset())
	}
	return kafka.NewConsumer(cfg.brokers, cfg.group, []string{cfg.sourceTopic}, handler, opts...)
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fail("event replay failed: %v", err)
	}
}

func readConfig(fs *flag.FlagSet, args []string, getenv func(string) string) (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+envKafkaBrokers+")")
	fs.StringVar(&cfg.sourceTopic, "topic", kafka.TopicOrderEvents, "topic to read events from")
	fs.StringVar(&cfg.targetTopic, "target-topic", "", "topic to re-publish events to; empty only logs them")
	fs.StringVar(&cfg.group, "group", defaultGroup, "consumer group id")
	fs.BoolVar(&cfg.fromOldest, "from-oldest", true, "start a new group from the oldest offset")
	fs.BoolVar(&cfg.toOriginal, "to-original", false, "re-publish DLQ messages to the topic from the "+kafka.HeaderOriginalTopic+" header")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop after this long without new messages")
	fs.IntVar(&cfg.maxRetries, "max-retries", 3, "handler attempts per message")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = getenv(envKafkaBrokers)
	}

	cfg.brokers = parseBrokers(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	}
	cfg.sourceTopic = strings.TrimSpace(cfg.sourceTopic)
	cfg.targetTopic = strings.TrimSpace(cfg.targetTopic)
	if cfg.sourceTopic == "" {
		return config{}, fmt.Errorf("topic is required")
	}
	if cfg.targetTopic != "" && cfg.targetTopic == cfg.sourceTopic {
		return config{}, fmt.Errorf("target-topic must differ from topic")
	}
	if strings.TrimSpace(cfg.group) == "" {
		return config{}, fmt.Errorf("group is required")
	}
	if cfg.idleTimeout <= 0 {
		return config{}, fmt.Errorf("idle-timeout must be > 0")
	}
	if cfg.maxRetries <= 0 {
		return config{}, fmt.Errorf("max-retries must be > 0")
	}

	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

// publishes reports whether the run writes anywhere or only logs.
func (c config) publishes() bool {
	return c.targetTopic != "" || c.toOriginal
}

func run(ctx context.Context, cfg config) error {
	mode := "log-only"
	if cfg.publishes() {
		mode = "republish"
	}
	log.WithFields(log.Fields{
		"topic":        cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"to_original":  cfg.toOriginal,
		"group":        cfg.group,
		"mode":         mode,
	}).Info("starting event replay")

	var publisher replayPublisher
	if cfg.publishes() {
		p, err := newReplayPublisher(cfg)
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		publisher = p
		defer func() { _ = publisher.Close() }()
	}

	stats := &replayStats{}
	activity := make(chan struct{}, 1)
	handler := newReplayHandler(cfg, publisher, stats, activity)

	consumer, err := newReplayConsumer(cfg, handler)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := consumer.Start(runCtx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	waitIdle(runCtx, activity, cfg.idleTimeout)
	cancel()
	if err := consumer.Stop(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"mode":      mode,
		"seen":      stats.seen.Load(),
		"replayed":  stats.replayed.Load(),
		"malformed": stats.malformed.Load(),
	}).Info("event replay finished")

	return nil
}

// waitIdle возвращается, когда ctx отменён или сообщений не было дольше idle.
func waitIdle(ctx context.Context, activity <-chan struct{}, idle time.Duration) {
	idleTimer := time.NewTimer(idle)
	defer idleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-activity:
			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(idle)
		case <-idleTimer.C:
			return
		}
	}
}

func newReplayHandler(cfg config, publisher replayPublisher, stats *replayStats, activity chan<- struct{}) kafka.MessageHandler {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		select {
		case activity <- struct{}{}:
		default:
		}
		stats.seen.Add(1)

		entry := log.WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		})

		envelope, err := kafka.ParseEnvelope(msg)
		if err != nil {
			// Повтор не поможет: сообщение пропускается.
			stats.malformed.Add(1)
			entry.WithError(err).Warn("skip malformed event")
			return nil
		}
		entry = entry.WithFields(log.Fields{
			"event_type": envelope.EventType,
			"order_id":   envelope.AggregateID,
		})
		if event, err := envelope.OrderEvent(); err == nil && event.Status != "" {
			entry = entry.WithField("status", event.Status)
		}

		target := replayTarget(cfg, msg)
		if target == "" || publisher == nil {
			entry.Info("event")
			return nil
		}

		key := string(msg.Key)
		if key == "" {
			key = envelope.AggregateID
		}
		headers := []sarama.RecordHeader{
			{Key: []byte(kafka.HeaderEventType), Value: []byte(envelope.EventType)},
			{Key: []byte(kafka.HeaderOriginalTopic), Value: []byte(msg.Topic)},
		}
		if err := publisher.PublishRaw(ctx, target, key, msg.Value, headers...); err != nil {
			return fmt.Errorf("republish to %s: %w", target, err)
		}
		stats.replayed.Add(1)
		entry.WithField("target_topic", target).Debug("event re-published")
		return nil
	}
}

// replayTarget выбирает topic назначения: заголовок исходного topic имеет приоритет при -to-original.
func replayTarget(cfg config, msg *sarama.ConsumerMessage) string {
	if cfg.toOriginal {
		for _, h := range msg.Headers {
			if h != nil && string(h.Key) == kafka.HeaderOriginalTopic && len(h.Value) > 0 {
				return string(h.Value)
			}
		}
	}
	return cfg.targetTopic
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
