package collab

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"autoformat-service/backend/internal/content"
	"autoformat-service/backend/internal/decorate"
	"autoformat-service/backend/internal/engine"
	"autoformat-service/backend/internal/marker"
	"autoformat-service/backend/internal/persist"
)

// 编辑会话接口：每个文档一份已提交状态，所有编辑按到达顺序逐个处理
type Service interface {
	Open(ctx context.Context, docID string) (Commit, error)
	Submit(ctx context.Context, docID string, edit Edit) (Commit, error)
	Undo(ctx context.Context, docID string) (Commit, error)

	Current(ctx context.Context, docID string) (Commit, error)
	Decorations(ctx context.Context, docID string) ([]decorate.Decoration, error)

	SetRecording(ctx context.Context, docID string, on bool) error
	Recording(ctx context.Context, docID string) (bool, error)

	// OnCommit 注册提交回调（websocket 广播用）。回调在文档锁内同步调用，必须不阻塞。
	OnCommit(fn func(Commit))
}

// 事件发布（Kafka 实现见 KafkaDispatcher）
type EventPublisher interface {
	Enqueue(ctx context.Context, evt DocCommittedEvent) error
}

// Commit 一次提交之后的文档快照
type Commit struct {
	DocID       string
	Revision    uint64
	Document    content.Document
	Decorations []decorate.Decoration
	EditKind    EditKind
	Fired       bool        // 是否触发了标记规则
	Rule        marker.Rule // Fired=true 时有效
	Undo        bool
	Recording   bool
	Persisted   bool
	CommittedAt time.Time
}

var (
	ErrUnknownEditKind  = errors.New("UNKNOWN_EDIT_KIND")
	ErrInvalidEdit      = errors.New("INVALID_EDIT")
	ErrDocumentNotOpen  = errors.New("DOCUMENT_NOT_OPEN")
	ErrPublisherTimeout = errors.New("PUBLISHER_TIMEOUT")
)

type docState struct {
	mu        sync.RWMutex
	revision  uint64
	doc       content.Document
	recording bool
	history   *history
	last      Commit
}

type Options struct {
	HistoryCap       int
	RecordingDefault bool
	// 入队 Kafka 的最长等待，超时丢弃事件
	PublishTimeout time.Duration
}

// 内存实现：持有所有已打开文档的状态
type InMemoryService struct {
	mu   sync.RWMutex
	docs map[string]*docState

	engine    *engine.Engine
	decorator *decorate.Decorator
	adapter   *persist.Adapter
	publisher EventPublisher
	opt       Options

	lmu       sync.RWMutex
	listeners []func(Commit)
}

// NewInMemoryService adapter/publisher 可以为 nil（不持久化 / 不发事件）
func NewInMemoryService(eng *engine.Engine, decorator *decorate.Decorator, adapter *persist.Adapter, publisher EventPublisher, opt Options) *InMemoryService {
	if eng == nil {
		eng = engine.New(marker.DefaultTable())
	}
	if decorator == nil {
		decorator = decorate.Default()
	}
	if opt.PublishTimeout <= 0 {
		opt.PublishTimeout = 200 * time.Millisecond
	}
	return &InMemoryService{
		docs:      make(map[string]*docState),
		engine:    eng,
		decorator: decorator,
		adapter:   adapter,
		publisher: publisher,
		opt:       opt,
	}
}

var _ Service = (*InMemoryService)(nil)

func (s *InMemoryService) OnCommit(fn func(Commit)) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Open 第一次打开时从存储恢复（读不到或数据损坏就从空文档开始），之后直接返回当前状态
func (s *InMemoryService) Open(ctx context.Context, docID string) (Commit, error) {
	if docID == "" {
		return Commit{}, fmt.Errorf("%w: empty docId", ErrInvalidEdit)
	}
	if ds := s.lookup(docID); ds != nil {
		ds.mu.RLock()
		defer ds.mu.RUnlock()
		return ds.last, nil
	}

	// 存储读取放在全局锁外面，同一文档的并发读取由 adapter 的 singleflight 合并
	doc := content.NewDocument()
	if s.adapter != nil {
		doc = s.adapter.LoadOrEmpty(ctx, docID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ds := s.docs[docID]; ds != nil {
		ds.mu.RLock()
		defer ds.mu.RUnlock()
		return ds.last, nil
	}
	ds := &docState{
		doc:       doc,
		recording: s.opt.RecordingDefault,
		history:   newHistory(s.opt.HistoryCap),
	}
	ds.last = s.snapshot(docID, ds, "", engine.Result{Document: doc})
	s.docs[docID] = ds
	return ds.last, nil
}

// Submit 编辑 → 候选文档 → 标记检测 → 提交（revision++、入历史、按录制开关落盘、发事件）
func (s *InMemoryService) Submit(ctx context.Context, docID string, edit Edit) (Commit, error) {
	ds := s.lookup(docID)
	if ds == nil {
		return Commit{}, ErrDocumentNotOpen
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()

	prev := ds.doc
	cand, err := candidate(prev, edit)
	if err != nil {
		if errors.Is(err, ErrUnknownEditKind) || errors.Is(err, ErrInvalidEdit) {
			return Commit{}, err
		}
		return Commit{}, fmt.Errorf("%w: %w", ErrInvalidEdit, err)
	}

	res := engine.Result{Document: cand}
	if !edit.bypassesEngine() {
		res = s.engine.Transition(prev, cand)
	}
	if err := content.Validate(res.Document); err != nil {
		// 编辑层和引擎都保证不变量；这里兜底，保留上一个有效状态
		log.Printf("collab: doc=%s edit=%s produced invalid document, keep previous: %v", docID, edit.Kind, err)
		return Commit{}, fmt.Errorf("%w: %w", ErrInvalidEdit, err)
	}

	ds.history.push(prev)
	return s.commitLocked(ctx, docID, ds, edit.Kind, res, false), nil
}

// Undo 把上一个已提交文档恢复成一个新的提交（revision 继续递增）
func (s *InMemoryService) Undo(ctx context.Context, docID string) (Commit, error) {
	ds := s.lookup(docID)
	if ds == nil {
		return Commit{}, ErrDocumentNotOpen
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()

	doc, err := ds.history.pop()
	if err != nil {
		return Commit{}, err
	}
	return s.commitLocked(ctx, docID, ds, "", engine.Result{Document: doc}, true), nil
}

func (s *InMemoryService) Current(ctx context.Context, docID string) (Commit, error) {
	ds := s.lookup(docID)
	if ds == nil {
		return Commit{}, ErrDocumentNotOpen
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.last, nil
}

func (s *InMemoryService) Decorations(ctx context.Context, docID string) ([]decorate.Decoration, error) {
	c, err := s.Current(ctx, docID)
	if err != nil {
		return nil, err
	}
	return c.Decorations, nil
}

// SetRecording 关→开不补写之前错过的提交，只影响之后的编辑
func (s *InMemoryService) SetRecording(ctx context.Context, docID string, on bool) error {
	ds := s.lookup(docID)
	if ds == nil {
		return ErrDocumentNotOpen
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.recording = on
	ds.last.Recording = on
	return nil
}

func (s *InMemoryService) Recording(ctx context.Context, docID string) (bool, error) {
	ds := s.lookup(docID)
	if ds == nil {
		return false, ErrDocumentNotOpen
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.recording, nil
}

// HistoryLen 可撤销的步数
func (s *InMemoryService) HistoryLen(docID string) int {
	ds := s.lookup(docID)
	if ds == nil {
		return 0
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.history.len()
}

func (s *InMemoryService) lookup(docID string) *docState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[docID]
}

// commitLocked 调用方持有 ds.mu 写锁
func (s *InMemoryService) commitLocked(ctx context.Context, docID string, ds *docState, kind EditKind, res engine.Result, undo bool) Commit {
	ds.revision++
	ds.doc = res.Document

	c := s.snapshot(docID, ds, kind, res)
	c.Undo = undo

	if s.adapter != nil && ds.recording {
		if err := s.adapter.Save(ctx, docID, ds.doc, persist.RecordingOn); err != nil {
			// 落盘失败不影响内存状态，下一次提交会再写一次完整文档
			log.Printf("collab: save doc=%s rev=%d failed: %v", docID, ds.revision, err)
		} else {
			c.Persisted = true
		}
	}
	ds.last = c

	if s.publisher != nil {
		pctx, cancel := context.WithTimeout(ctx, s.opt.PublishTimeout)
		if err := s.publisher.Enqueue(pctx, newCommittedEvent(c)); err != nil {
			log.Printf("collab: enqueue event doc=%s rev=%d: %v", docID, c.Revision, fmt.Errorf("%w: %w", ErrPublisherTimeout, err))
		}
		cancel()
	}

	s.lmu.RLock()
	for _, fn := range s.listeners {
		fn(c)
	}
	s.lmu.RUnlock()
	return c
}

func (s *InMemoryService) snapshot(docID string, ds *docState, kind EditKind, res engine.Result) Commit {
	return Commit{
		DocID:       docID,
		Revision:    ds.revision,
		Document:    ds.doc,
		Decorations: s.decorator.Decorate(ds.doc),
		EditKind:    kind,
		Fired:       res.Fired,
		Rule:        res.Rule,
		Recording:   ds.recording,
		CommittedAt: time.Now(),
	}
}
