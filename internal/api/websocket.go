// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/CineScript/CineScriptStudio/internal/services"
	"github.com/CineScript/CineScriptStudio/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 单用户本地服务，跨域检查放开
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient 一条已升级的推送连接
type wsClient struct {
	conn     *websocket.Conn
	send     chan []byte
	hub      *VideoStatusHub
	closed   bool
	closeMux sync.Mutex
}

func (client *wsClient) close() {
	client.closeMux.Lock()
	defer client.closeMux.Unlock()
	if client.closed {
		return
	}
	client.closed = true
	close(client.send)
	client.conn.Close()
}

// writeLoop 把待发消息串行写出，断开时退出
func (client *wsClient) writeLoop() {
	defer client.hub.unregister(client)
	for message := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// readLoop 只为感知断开，丢弃入站消息
func (client *wsClient) readLoop() {
	defer client.hub.unregister(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// VideoStatusHub 视频任务状态的 WebSocket 集线器
// 实现 services.VideoNotifier，把状态变更广播给所有已连接客户端
type VideoStatusHub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewVideoStatusHub 创建集线器
func NewVideoStatusHub() *VideoStatusHub {
	return &VideoStatusHub{clients: map[*wsClient]struct{}{}}
}

func (hub *VideoStatusHub) register(client *wsClient) {
	hub.mu.Lock()
	hub.clients[client] = struct{}{}
	hub.mu.Unlock()
}

func (hub *VideoStatusHub) unregister(client *wsClient) {
	hub.mu.Lock()
	_, exists := hub.clients[client]
	delete(hub.clients, client)
	hub.mu.Unlock()
	if exists {
		client.close()
	}
}

// ClientCount 返回当前连接数
func (hub *VideoStatusHub) ClientCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

// NotifyVideoStatus 广播一条状态变更
// 发不进去的慢客户端直接踢掉，不阻塞任务协程
func (hub *VideoStatusHub) NotifyVideoStatus(event services.VideoStatusEvent) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":  "video_status",
		"event": event,
	})
	if err != nil {
		utils.GetLogger().Errorf("序列化视频状态消息失败: %v", err)
		return
	}

	hub.mu.RLock()
	stale := []*wsClient{}
	for client := range hub.clients {
		select {
		case client.send <- payload:
		default:
			stale = append(stale, client)
		}
	}
	hub.mu.RUnlock()

	for _, client := range stale {
		hub.unregister(client)
	}
}

// HandleWebSocket 升级连接并接入集线器
func (hub *VideoStatusHub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warnf("WebSocket 升级失败: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
		hub:  hub,
	}
	hub.register(client)

	go client.writeLoop()
	go client.readLoop()
}

// Shutdown 关闭所有连接
func (hub *VideoStatusHub) Shutdown() {
	hub.mu.Lock()
	clients := make([]*wsClient, 0, len(hub.clients))
	for client := range hub.clients {
		clients = append(clients, client)
	}
	hub.clients = map[*wsClient]struct{}{}
	hub.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
}
