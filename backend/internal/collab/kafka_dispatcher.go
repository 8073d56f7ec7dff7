package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
)

// KafkaDispatcher 把提交事件异步发到 Kafka：
// 提交路径只入队；worker 发送失败按指数退避重试，重试用完丢弃并计数。
// 同一文档的事件用 docId 做 key，落在同一分区里保持 revision 顺序。
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	topic    string
	sem      *SemaphoreControl
	opt      KafkaDispatcherOptions

	// mu 保证 Close 关闭 queue 时没有 Enqueue 正在发送
	mu     sync.RWMutex
	closed bool
	queue  chan DocCommittedEvent
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	sent    atomic.Uint64
	dropped atomic.Uint64
}

var ErrDispatcherClosed = errors.New("DISPATCHER_CLOSED")

type KafkaDispatcherOptions struct {
	QueueSize   int
	Workers     int
	MaxRetry    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DispatcherStats 已发送 / 已丢弃的事件数
type DispatcherStats struct {
	Sent    uint64
	Dropped uint64
	Queued  int
}

// NewKafkaDispatcher sem 可以为 nil（不限制并发发送）
func NewKafkaDispatcher(producer sarama.SyncProducer, topic string, sem *SemaphoreControl, opt KafkaDispatcherOptions) *KafkaDispatcher {
	if opt.Workers <= 0 {
		opt.Workers = 1
	}
	if opt.MaxBackoff < opt.BaseBackoff {
		opt.MaxBackoff = opt.BaseBackoff
	}
	d := &KafkaDispatcher{
		producer: producer,
		topic:    topic,
		sem:      sem,
		opt:      opt,
		queue:    make(chan DocCommittedEvent, opt.QueueSize),
		stop:     make(chan struct{}),
	}
	for i := 0; i < opt.Workers; i++ {
		d.wg.Add(1)
		go d.run(i)
	}
	return d
}

var _ EventPublisher = (*KafkaDispatcher)(nil)

// Enqueue 队列满时最多等到 ctx 结束；Close 之后返回 ErrDispatcherClosed
func (d *KafkaDispatcher) Enqueue(ctx context.Context, evt DocCommittedEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stop:
		return ErrDispatcherClosed
	}
}

// Close 不再接收事件，等 worker 把队列发完；退避中的等待会被打断，直接进入下一次尝试。
// 先关 stop 唤醒卡在满队列上的 Enqueue，它们释放读锁后才能关 queue。
func (d *KafkaDispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *KafkaDispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Sent:    d.sent.Load(),
		Dropped: d.dropped.Load(),
		Queued:  len(d.queue),
	}
}

func (d *KafkaDispatcher) run(worker int) {
	defer d.wg.Done()
	for evt := range d.queue {
		if err := d.deliver(evt); err != nil {
			d.dropped.Add(1)
			log.Printf("kafka: drop doc=%s rev=%d worker=%d after %d attempts: %v",
				evt.DocID, evt.Revision, worker, d.opt.MaxRetry+1, err)
			continue
		}
		d.sent.Add(1)
	}
}

func (d *KafkaDispatcher) deliver(evt DocCommittedEvent) error {
	msg, err := d.message(evt)
	if err != nil {
		// 编码失败重试也没用
		return err
	}
	for attempt := 0; ; attempt++ {
		if err = d.sendOnce(msg); err == nil {
			return nil
		}
		if attempt >= d.opt.MaxRetry {
			return err
		}
		d.wait(d.backoff(attempt))
	}
}

func (d *KafkaDispatcher) sendOnce(msg *sarama.ProducerMessage) error {
	if d.sem != nil {
		// worker 不在提交路径上，可以一直等；Background 没有截止时间，Acquire 只会成功
		if err := d.sem.Acquire(context.Background()); err != nil {
			return err
		}
		defer d.sem.Release()
	}
	if d.producer == nil || msg == nil {
		return nil
	}
	_, _, err := d.producer.SendMessage(msg)
	return err
}

// message topic 没配置时返回 nil（只计数不发送）
func (d *KafkaDispatcher) message(evt DocCommittedEvent) (*sarama.ProducerMessage, error) {
	if d.topic == "" {
		return nil, nil
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return &sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(evt.DocID),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(evt.EventType)},
			{Key: []byte("revision"), Value: []byte(strconv.FormatUint(evt.Revision, 10))},
		},
	}, nil
}

func (d *KafkaDispatcher) backoff(attempt int) time.Duration {
	b := d.opt.BaseBackoff << attempt
	if b <= 0 || b > d.opt.MaxBackoff {
		return d.opt.MaxBackoff
	}
	return b
}

func (d *KafkaDispatcher) wait(dur time.Duration) {
	if dur <= 0 {
		return
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
	case <-d.stop:
	}
}
