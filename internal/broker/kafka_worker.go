package broker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress/lz4"
)

func newWriter(cfg *config.ProducerConfig, topic string, log *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(cfg.Addr, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxAttempts,
		BatchSize:    1,                // the parameter is controlled by 'batchTicker' variable
		BatchTimeout: time.Millisecond, // the parameter is controlled by 'batch' variable
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAsks),
		Async:        cfg.Async,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
			}
		},
		Compression: kafka.Compression(new(lz4.Codec).Code()),
	}
}

// KafkaProducerClient publishes job events to the results topic.
type KafkaProducerClient struct {
	eventChan <-chan *model.JobEvent
	cfg       *config.ProducerConfig
	log       *slog.Logger
	wg        *sync.WaitGroup
}

func NewKafkaProducer(eventChan <-chan *model.JobEvent, cfg *config.ProducerConfig, log *slog.Logger,
	wg *sync.WaitGroup) *KafkaProducerClient {
	return &KafkaProducerClient{
		eventChan: eventChan,
		cfg:       cfg,
		log:       log,
		wg:        wg,
	}
}

// Run sends events in batches until eventChan is closed and drained.
func (p *KafkaProducerClient) Run() {
	defer p.wg.Done()
	p.log.Info("starting kafka producer...", slog.String("topic", p.cfg.WriteTopicName))

	w := newWriter(p.cfg, p.cfg.WriteTopicName, p.log)
	defer func() {
		err := w.Close()
		if err != nil {
			p.log.Error("failed to close kafka writer.", slog.String("err", err.Error()))
		}
	}()

	batchTicker := time.NewTicker(p.cfg.BatchTimeout)
	defer batchTicker.Stop()
	batch := make([]kafka.Message, 0, p.cfg.BatchSize)
	writeMessage := func(batch []kafka.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
		defer cancel()
		err := w.WriteMessages(ctx, batch...)
		if err != nil {
			p.log.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
			return
		}
		p.log.Debug("successfully sent messages to kafka.", slog.Int("batch length", len(batch)))
	}

	for event := range p.eventChan {
		body, err := model.Marshal(event)
		if err != nil {
			p.log.Error("marshaling error.", slog.String("err", err.Error()), slog.String("key", event.Key()))
			continue
		}
		batch = append(batch, kafka.Message{
			Key:   []byte(event.Key()),
			Value: body,
		})
		select {
		case <-batchTicker.C:
			writeMessage(batch)
			batch = make([]kafka.Message, 0, p.cfg.BatchSize)
		default:
			if len(batch) >= p.cfg.BatchSize {
				writeMessage(batch)
				batch = make([]kafka.Message, 0, p.cfg.BatchSize)
			}
		}
	}
	// Some messages may remain in the batch after eventChan is closed
	if len(batch) > 0 {
		p.log.Debug("messages in batch.", slog.Int("count", len(batch)))
		writeMessage(batch)
	}
	p.log.Info("stopping kafka writer.")
}

const fetchRetryWait = 2 * time.Second

// KafkaConsumerClient reads task messages and hands them out as deliveries. Offsets are
// committed in offset order once deliveries are acknowledged.
type KafkaConsumerClient struct {
	deliveries chan<- *Delivery
	cfg        *config.ConsumerConfig
	log        *slog.Logger
	wg         *sync.WaitGroup
	reader     *kafka.Reader
	offsets    *offsetTracker
	commitMu   sync.Mutex
}

func NewKafkaConsumer(deliveries chan<- *Delivery, cfg *config.ConsumerConfig, log *slog.Logger,
	wg *sync.WaitGroup) *KafkaConsumerClient {
	return &KafkaConsumerClient{
		deliveries: deliveries,
		cfg:        cfg,
		log:        log,
		wg:         wg,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:          strings.Split(cfg.Brokers, ","),
			Topic:            cfg.ReadTopicName,
			GroupID:          cfg.GroupID,
			MaxWait:          cfg.MaxWait,
			ReadBatchTimeout: cfg.ReadBatchTimeout,
		}),
		offsets: newOffsetTracker(),
	}
}

// Run fetches messages until ctx is done and then closes the deliveries channel. The reader
// stays open so deliveries still in flight can be acknowledged; call Close once they are.
func (c *KafkaConsumerClient) Run(ctx context.Context) {
	c.log.Info("starting kafka consumer.", slog.String("topic", c.cfg.ReadTopicName))
	defer c.wg.Done()
	defer func() {
		close(c.deliveries)
		c.log.Info("close deliveries channel.")
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.log.Info("stopping kafka reader.")
				return
			}
			c.log.Error("failed to read message from kafka.", slog.String("err", err.Error()))
			select {
			case <-time.After(fetchRetryWait):
				continue
			case <-ctx.Done():
				c.log.Info("stopping kafka reader.")
				return
			}
		}
		c.log.Debug("successfully read messages from kafka.")

		msg := m
		c.offsets.fetched(msg)
		select {
		case c.deliveries <- NewDelivery(msg.Key, msg.Value, func(ctx context.Context) error {
			return c.commit(ctx, msg)
		}):
		case <-ctx.Done():
			c.log.Info("stopping kafka reader.")
			return
		}
	}
}

// commit acks msg and commits the highest offset whose predecessors are all acked. The lock
// keeps commits of one partition from reaching the broker out of order.
func (c *KafkaConsumerClient) commit(ctx context.Context, msg kafka.Message) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	last, ok := c.offsets.acked(msg)
	if !ok {
		return nil
	}
	return c.reader.CommitMessages(ctx, last)
}

func (c *KafkaConsumerClient) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("failed to close kafka reader.", slog.String("err", err.Error()))
	}
}

// TaskPublisher writes task messages to the tasks topic.
type TaskPublisher struct {
	writer *kafka.Writer
	log    *slog.Logger
}

func NewTaskPublisher(cfg *config.ProducerConfig, log *slog.Logger) *TaskPublisher {
	w := newWriter(cfg, cfg.TaskTopicName, log)
	w.Async = false // Publish reports broker errors to the caller
	return &TaskPublisher{writer: w, log: log}
}

func (p *TaskPublisher) Publish(ctx context.Context, task model.Task) error {
	body, err := model.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(task.Key()), Value: body})
}

func (p *TaskPublisher) Close() {
	if err := p.writer.Close(); err != nil {
		p.log.Error("failed to close kafka task writer.", slog.String("err", err.Error()))
	}
}
