// Команда dlq-reprocess возвращает события заказов из DLQ в исходный topic.
// Без -execute только показывает, что было бы переотправлено.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

const (
	envKafkaBrokers = "ORDERFLOW_KAFKA_BROKERS"

	// HeaderReplayedAt отмечает событие, возвращённое из DLQ.
	HeaderReplayedAt = "x-replayed-at"
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
	// eventTypes ограничивает переотправку типами событий; пустой набор пропускает все.
	eventTypes []string
}

// offsetReader отдаёт границы партиций DLQ. Реализуется sarama.Client.
type offsetReader interface {
	Partitions(topic string) ([]int32, error)
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Close() error
}

type partitionStream interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error)
	Close() error
}

// eventPublisher реализуется *kafka.Producer.
type eventPublisher interface {
	PublishRaw(topic string, key string, value []byte, headers ...sarama.RecordHeader) error
	Close() error
}

type saramaSource struct{ sarama.Consumer }

func (s saramaSource) ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error) {
	return s.Consumer.ConsumePartition(topic, partition, offset)
}

// connect открывает клиента Kafka; producer создаётся только для -execute.
var connect = func(cfg config) (offsetReader, partitionSource, eventPublisher, error) {
	sc := sarama.NewConfig()
	sc.ClientID = "orderflow-dlq-reprocess"
	sc.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, sc)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("kafka consumer: %w", err)
	}
	if !cfg.execute {
		return client, saramaSource{consumer}, nil, nil
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:  cfg.brokers,
		ClientID: "orderflow-dlq-reprocess-" + version.GetVersion(),
	})
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, nil, nil, err
	}
	return client, saramaSource{consumer}, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := readConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Error("dlq replay failed")
		os.Exit(1)
	}
}

func readConfig(args []string, getenv func(string) string) (config, error) {
	cfg := config{}
	var brokers, types string

	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.StringVar(&brokers, "brokers", "", "comma-separated Kafka brokers (default $"+envKafkaBrokers+")")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ topic to scan")
	fs.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicOrderEvents, "topic for events without the original-topic header")
	fs.IntVar(&cfg.limit, "limit", 100, "max messages to scan across all partitions")
	fs.BoolVar(&cfg.execute, "execute", false, "republish events instead of a dry run")
	fs.BoolVar(&cfg.fromNewest, "from-newest", false, "scan the last -limit messages of each partition")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", 2*time.Second, "stop reading a partition after this long without messages")
	fs.StringVar(&types, "event-type", "", "comma-separated event types to replay, e.g. "+domain.EventOrderPaid)
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokers) == "" {
		brokers = getenv(envKafkaBrokers)
	}
	cfg.brokers = splitList(brokers)
	cfg.eventTypes = splitList(types)

	var problems []error
	if len(cfg.brokers) == 0 {
		problems = append(problems, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers))
	}
	if strings.TrimSpace(cfg.sourceTopic) == "" {
		problems = append(problems, errors.New("source-topic is required"))
	}
	if strings.TrimSpace(cfg.targetTopic) == "" {
		problems = append(problems, errors.New("target-topic is required"))
	}
	if cfg.limit <= 0 {
		problems = append(problems, errors.New("limit must be > 0"))
	}
	if cfg.idleTimeout <= 0 {
		problems = append(problems, errors.New("idle-timeout must be > 0"))
	}
	if err := errors.Join(problems...); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(ctx context.Context, cfg config) error {
	offsets, source, publisher, err := connect(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if publisher != nil {
			_ = publisher.Close()
		}
		_ = source.Close()
		_ = offsets.Close()
	}()

	r := &replayer{
		cfg:       cfg,
		offsets:   offsets,
		source:    source,
		publisher: publisher,
		logger:    log.WithField("component", "dlq-reprocess"),
		now:       time.Now,
	}
	report, err := r.Run(ctx)
	r.logger.WithFields(report.fields(cfg.execute)).Info("dlq replay finished")
	return err
}

// replayReport считает просмотренные сообщения DLQ.
type replayReport struct {
	scanned  int
	replayed int
	skipped  int
	// byType — переотправленные (или, в dry-run, отобранные) события по типам.
	byType map[string]int
}

func (r replayReport) fields(execute bool) log.Fields {
	mode := "dry-run"
	if execute {
		mode = "execute"
	}
	return log.Fields{
		"mode":     mode,
		"scanned":  r.scanned,
		"replayed": r.replayed,
		"skipped":  r.skipped,
		"by_type":  r.byType,
	}
}

// replayer обходит партиции DLQ в порядке номеров, пока не исчерпан общий лимит.
// Читается только то, что лежало в партиции на момент старта.
type replayer struct {
	cfg       config
	offsets   offsetReader
	source    partitionSource
	publisher eventPublisher
	logger    *log.Entry
	now       func() time.Time
}

func (r *replayer) Run(ctx context.Context) (replayReport, error) {
	report := replayReport{byType: make(map[string]int)}
	if r.cfg.execute && r.publisher == nil {
		return report, errors.New("execute mode needs a kafka producer")
	}

	partitions, err := r.offsets.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return report, fmt.Errorf("partitions of %s: %w", r.cfg.sourceTopic, err)
	}
	slices.Sort(partitions)

	for _, p := range partitions {
		budget := r.cfg.limit - report.scanned
		if budget <= 0 {
			break
		}
		if err := r.drain(ctx, p, budget, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// window возвращает диапазон [from, until) для чтения партиции.
func (r *replayer) window(partition int32, budget int) (from, until int64, err error) {
	oldest, err := r.offsets.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, fmt.Errorf("oldest offset of partition %d: %w", partition, err)
	}
	until, err = r.offsets.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, fmt.Errorf("newest offset of partition %d: %w", partition, err)
	}
	from = oldest
	if r.cfg.fromNewest {
		from = max(until-int64(budget), oldest)
	}
	return from, until, nil
}

func (r *replayer) drain(ctx context.Context, partition int32, budget int, report *replayReport) error {
	from, until, err := r.window(partition, budget)
	if err != nil || from >= until {
		return err
	}

	stream, err := r.source.ConsumePartition(r.cfg.sourceTopic, partition, from)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = stream.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for seen := 0; seen < budget; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			r.logger.WithField("partition", partition).Warn("partition went idle before reaching its end")
			return nil
		case cerr := <-stream.Errors():
			if cerr != nil {
				return fmt.Errorf("partition %d: %w", partition, cerr)
			}
		case msg, ok := <-stream.Messages():
			if !ok || msg == nil || msg.Offset >= until {
				return nil
			}
			idle.Reset(r.cfg.idleTimeout)
			seen++
			report.scanned++
			if err := r.handle(msg, report); err != nil {
				return err
			}
			if msg.Offset+1 >= until {
				return nil
			}
		}
	}
	return nil
}

// handle решает судьбу одного сообщения DLQ. Ошибкой считается только сбой публикации.
func (r *replayer) handle(msg *sarama.ConsumerMessage, report *replayReport) error {
	entry := r.logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	replay, err := decodeDeadLetter(msg, r.cfg.targetTopic, r.now())
	if err != nil {
		report.skipped++
		entry.WithError(err).Warn("skip dlq message")
		return nil
	}
	if len(r.cfg.eventTypes) > 0 && !slices.Contains(r.cfg.eventTypes, replay.eventType) {
		report.skipped++
		return nil
	}

	entry = entry.WithFields(log.Fields{
		"order_id":   replay.key,
		"event_type": replay.eventType,
		"topic":      replay.topic,
		"dlq_reason": header(msg.Headers, kafka.HeaderErrorMessage),
	})
	if r.cfg.execute {
		if err := r.publisher.PublishRaw(replay.topic, replay.key, replay.value, replay.headers...); err != nil {
			return fmt.Errorf("republish %s of %s: %w", replay.eventType, replay.key, err)
		}
		entry.Info("event republished")
	} else {
		entry.Info("would republish event")
	}
	report.replayed++
	report.byType[replay.eventType]++
	return nil
}

type replayEvent struct {
	topic     string
	key       string
	eventType string
	value     []byte
	headers   []sarama.RecordHeader
}

var errNotOrderEvent = errors.New("not an order event")

// decodeDeadLetter восстанавливает событие заказа из DLQ-сообщения с обновлённым published_at.
func decodeDeadLetter(msg *sarama.ConsumerMessage, fallbackTopic string, now time.Time) (replayEvent, error) {
	var event kafka.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return replayEvent{}, fmt.Errorf("decode dlq value: %w", err)
	}
	if strings.TrimSpace(event.EventType) == "" || strings.TrimSpace(event.AggregateID) == "" {
		return replayEvent{}, errNotOrderEvent
	}
	if len(event.Payload) == 0 {
		event.Payload = json.RawMessage(`{}`)
	}
	event.PublishedAt = now.UTC()

	value, err := json.Marshal(event)
	if err != nil {
		return replayEvent{}, fmt.Errorf("encode replay event: %w", err)
	}

	topic := header(msg.Headers, kafka.HeaderOriginalTopic)
	if topic == "" {
		topic = fallbackTopic
	}
	return replayEvent{
		topic:     topic,
		key:       event.AggregateID,
		eventType: event.EventType,
		value:     value,
		headers: []sarama.RecordHeader{
			{Key: []byte(kafka.HeaderEventType), Value: []byte(event.EventType)},
			{Key: []byte(kafka.HeaderOutboxID), Value: []byte(event.ID)},
			{Key: []byte(HeaderReplayedAt), Value: []byte(now.UTC().Format(time.RFC3339Nano))},
		},
	}, nil
}

func header(headers []*sarama.RecordHeader, key string) string {
	for _, h := range headers {
		if h != nil && string(h.Key) == key {
			return strings.TrimSpace(string(h.Value))
		}
	}
	return ""
}
