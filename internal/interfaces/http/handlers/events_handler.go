package handlers

import (
	"net/http"
	"time"

	"evocoder/internal/app/service"
	"evocoder/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	eventsWriteWait = 10 * time.Second
	eventsPongWait  = 60 * time.Second
	eventsPingEvery = (eventsPongWait * 9) / 10
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// EventsHandler 通过 websocket 推送工作流事件
type EventsHandler struct {
	orchestrator *service.Orchestrator
}

// NewEventsHandler 创建事件推送处理器实例
func NewEventsHandler(orchestrator *service.Orchestrator) *EventsHandler {
	return &EventsHandler{orchestrator: orchestrator}
}

// HandleEvents 升级为 websocket，先发送一次当前快照，之后转发总线上的事件
func (h *EventsHandler) HandleEvents(c *gin.Context) {
	conn, err := eventsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket 升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := h.orchestrator.Bus().Subscribe()
	defer unsubscribe()

	if err := conn.SetReadDeadline(time.Now().Add(eventsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})

	// 读循环只处理控制帧，连接关闭时结束
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snap := h.orchestrator.Snapshot()
	if !writeEvent(conn, service.Event{Type: service.EventActivity, Activity: snap.Activity, Project: snap.Project}) {
		return
	}

	ticker := time.NewTicker(eventsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !writeEvent(conn, ev) {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev service.Event) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
		return false
	}
	return conn.WriteJSON(ev) == nil
}
