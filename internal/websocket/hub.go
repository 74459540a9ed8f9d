package websocket

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"binaryoptions/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// broadcastAll - адресат "все подключенные клиенты"
const broadcastAll = 0

// envelope - сообщение с адресатом
type envelope struct {
	userID  int // broadcastAll = всем
	payload []byte
}

// Hub управляет всеми активными WebSocket соединениями
//
// Котировки рассылаются всем клиентам; расчеты сделок и балансы -
// только соединениям владельца. Медленный клиент, не успевающий
// вычитывать буфер, отключается, чтобы не тормозить рассылку.
//
// Использование:
//  1. hub := NewHub(logger)
//  2. go hub.Run()
//  3. hub.BroadcastPriceUpdate(asset) / hub.BroadcastTradeSettled(trade)
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	shutdown   chan struct{}
	once       sync.Once

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewHub создает новый Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
		logger:     logger,
	}
}

// Run запускает главный цикл Hub.
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client connected", zap.Int("user_id", client.userID), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client disconnected", zap.Int("user_id", client.userID), zap.Int("total", total))

		case msg := <-h.broadcast:
			// Снимок адресатов под коротким RLock, отправка без блокировки
			h.mu.RLock()
			targets := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				if msg.userID == broadcastAll || client.userID == msg.userID {
					targets = append(targets, client)
				}
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range targets {
				select {
				case client.send <- msg.payload:
				default:
					// Буфер клиента переполнен - отключаем
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
				h.logger.Warn("removed slow ws clients", zap.Int("count", len(toRemove)))
			}
		}
	}
}

// Stop останавливает цикл Hub и закрывает все соединения
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.shutdown) })
}

// send сериализует сообщение и ставит его в очередь рассылки
func (h *Hub) send(userID int, message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal ws message", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- envelope{userID: userID, payload: payload}:
	case <-h.shutdown:
	}
}

// BroadcastPriceUpdate отправляет котировку всем подключенным клиентам
func (h *Hub) BroadcastPriceUpdate(asset *models.Asset) {
	h.send(broadcastAll, NewPriceUpdateMessage(asset))
}

// BroadcastTradeSettled отправляет результат расчета владельцу сделки
func (h *Hub) BroadcastTradeSettled(trade *models.Trade) {
	h.send(trade.UserID, NewTradeSettledMessage(trade))
}

// BroadcastBalanceUpdate отправляет новый баланс владельцу счета
func (h *Hub) BroadcastBalanceUpdate(userID int, balance float64) {
	h.send(userID, NewBalanceUpdateMessage(balance))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
