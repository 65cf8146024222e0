package service

import (
	"sync"

	"evocoder/internal/domain/models"
)

// 事件类型
const (
	EventProject  = "project"
	EventLog      = "log"
	EventActivity = "activity"
)

// Event 推送给订阅者的状态变化
type Event struct {
	Type     string          `json:"type"`
	Activity Activity        `json:"activity,omitempty"`
	Project  *models.Project `json:"project,omitempty"`
	Log      string          `json:"log,omitempty"`
}

const subscriberBuffer = 64

// Bus 进程内事件广播；订阅者缓冲区写满时丢弃事件，发布方从不阻塞
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe 注册订阅者，返回事件通道和取消函数；取消后通道被关闭
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish 向所有订阅者发送事件
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers 当前订阅者数量
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
