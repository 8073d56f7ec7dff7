package persist

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"

	"autoformat-service/backend/internal/content"
)

var ErrSlotEmpty = errors.New("SLOT_EMPTY")

// Store 持久化后端：一个 slot 保存一份序列化后的文档
type Store interface {
	Save(ctx context.Context, slot string, data []byte) error
	// Load slot 里还没有数据时返回 ErrSlotEmpty
	Load(ctx context.Context, slot string) ([]byte, error)
}

// Recording 录制开关。作为参数显式传进 Save，不放在全局变量里。
type Recording bool

const (
	RecordingOff Recording = false
	RecordingOn  Recording = true
)

type Adapter struct {
	store Store
	sf    singleflight.Group
}

func NewAdapter(store Store) *Adapter {
	return &Adapter{store: store}
}

// Save 录制关闭时直接返回，不碰存储
func (a *Adapter) Save(ctx context.Context, slot string, doc content.Document, rec Recording) error {
	if !rec {
		return nil
	}
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", slot, err)
	}
	return a.store.Save(ctx, slot, data)
}

// Load 返回 (文档, 是否存在, 错误)。同一个 slot 的并发读取用 singleflight 合并成一次。
func (a *Adapter) Load(ctx context.Context, slot string) (content.Document, bool, error) {
	v, err, _ := a.sf.Do(slot, func() (interface{}, error) {
		return a.store.Load(ctx, slot)
	})
	if err != nil {
		if errors.Is(err, ErrSlotEmpty) {
			return content.Document{}, false, nil
		}
		return content.Document{}, false, err
	}
	data, ok := v.([]byte)
	if !ok {
		return content.Document{}, false, errors.New("internal type error")
	}
	doc, err := Decode(data)
	if err != nil {
		return content.Document{}, false, err
	}
	return doc, true, nil
}

// LoadOrEmpty 读不到或数据损坏时退回空文档，不让启动失败
func (a *Adapter) LoadOrEmpty(ctx context.Context, slot string) content.Document {
	doc, ok, err := a.Load(ctx, slot)
	if err != nil {
		log.Printf("persist: load %s failed, starting empty: %v", slot, err)
		return content.NewDocument()
	}
	if !ok {
		return content.NewDocument()
	}
	return doc
}
