// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ecf-service/internal/model"
	"ecf-service/internal/service"
	"ecf-service/internal/utils"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsWriteWait  = 10 * time.Second
)

// WebSocketHandler streams device events to WebSocket clients.
type WebSocketHandler struct {
	upgrader      websocket.Upgrader
	connections   *ConnectionManager
	deviceService *service.DeviceService
	eventBus      *EventBus
	logger        *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler. Browser origins are
// checked against allowedOrigins; "*" allows any origin.
func NewWebSocketHandler(
	deviceService *service.DeviceService,
	eventBus *EventBus,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		connections:   NewConnectionManager(),
		deviceService: deviceService,
		eventBus:      eventBus,
		logger:        utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/events", h.HandleEvents)
}

// HandleEvents streams device events
// @Summary Device event stream
// @Description Upgrade to a WebSocket that streams device events. Filter with device_id and repeated type parameters.
// @Tags Events
// @Param device_id query string false "Only events of this device"
// @Param type query []string false "Event types" collectionFormat(multi)
// @Success 101 "Switching protocols"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /ws/events [get]
func (h *WebSocketHandler) HandleEvents(c *gin.Context) {
	client := &Client{
		ID:          uuid.New().String(),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	var device *model.Device
	if deviceID := c.Query("device_id"); deviceID != "" {
		var err error
		device, err = h.deviceService.GetDevice(c.Request.Context(), deviceID)
		if err != nil {
			respondError(c, "Device not found", err)
			return
		}
		client.DeviceID = &device.DeviceID
		client.deviceUUID = device.ID
	}

	var types []model.EventType
	for _, t := range c.QueryArray("type") {
		types = append(types, model.EventType(t))
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	client.Connection = conn
	client.sub = h.eventBus.Subscribe(types...)
	h.connections.Register(client)
	h.logger.Info("WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	replies := make(chan *WebSocketMessage, 16)
	if device != nil {
		replies <- h.initialStatus(c.Request.Context(), device)
	}

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(client, replies, done)
	}()

	h.readLoop(client, replies)

	close(done)
	<-writerDone
	client.sub.Close()
	conn.Close()
	h.connections.Unregister(client)
	h.logger.Info("WebSocket client disconnected", zap.String("client_id", client.ID))
}

// readLoop consumes client messages until the connection fails.
func (h *WebSocketHandler) readLoop(client *Client, replies chan<- *WebSocketMessage) {
	conn := client.Connection
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket read error", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.Debug("Unreadable WebSocket message", zap.String("client_id", client.ID), zap.Error(err))
			continue
		}
		switch msg.Type {
		case "ping":
			reply(replies, &WebSocketMessage{Type: "pong", Timestamp: time.Now(), RequestID: msg.RequestID})
		default:
			reply(replies, &WebSocketMessage{
				Type:      "error",
				Data:      gin.H{"error": "unknown message type: " + msg.Type},
				Timestamp: time.Now(),
				RequestID: msg.RequestID,
			})
		}
	}
}

func reply(replies chan<- *WebSocketMessage, msg *WebSocketMessage) {
	select {
	case replies <- msg:
	default:
	}
}

// writeLoop is the only writer of the connection.
func (h *WebSocketHandler) writeLoop(client *Client, replies <-chan *WebSocketMessage, done <-chan struct{}) {
	conn := client.Connection
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	write := func(msgType int, data []byte) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(msgType, data); err != nil {
			h.logger.Debug("WebSocket write error", zap.String("client_id", client.ID), zap.Error(err))
			return false
		}
		return true
	}
	writeJSON := func(msg *WebSocketMessage) bool {
		data, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
			return true
		}
		return write(websocket.TextMessage, data)
	}

	for {
		select {
		case <-done:
			return
		case event, ok := <-client.sub.C:
			if !ok {
				write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				conn.Close()
				return
			}
			if client.DeviceID != nil && event.DeviceID != client.deviceUUID {
				continue
			}
			if !writeJSON(&WebSocketMessage{Type: "device_event", Data: event, Timestamp: event.Timestamp}) {
				conn.Close()
				return
			}
		case msg := <-replies:
			if !writeJSON(msg) {
				conn.Close()
				return
			}
		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				conn.Close()
				return
			}
		}
	}
}

func (h *WebSocketHandler) initialStatus(ctx context.Context, device *model.Device) *WebSocketMessage {
	data := gin.H{"device": device}
	if health, err := h.deviceService.GetDeviceHealth(ctx, device.DeviceID); err == nil {
		data["health"] = health
	}
	return &WebSocketMessage{Type: "initial_status", Data: data, Timestamp: time.Now()}
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
