// Package events реализует шину уведомлений об изменениях данных магазина.
package events

import "sync"

// Topic описывает тип изменившейся коллекции.
type Topic string

const (
	TopicProducts   Topic = "products"
	TopicOrders     Topic = "orders"
	TopicSales      Topic = "sales"
	TopicCategories Topic = "categories"
)

// Message описывает одно уведомление. Для темы orders может содержать
// идентификатор изменившегося заказа.
type Message struct {
	Topic   Topic  `json:"topic"`
	OrderID string `json:"orderId,omitempty"`
}

// Handler обрабатывает одно уведомление. Подписчик после получения
// перечитывает нужную коллекцию целиком, дельты не передаются.
type Handler func(Message)

// Bus рассылает уведомления подписчикам внутри процесса. Паника в одном
// обработчике не мешает доставке остальным.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic]map[int]Handler
}

// NewBus создаёт пустую шину уведомлений.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Topic]map[int]Handler),
	}
}

// Subscribe регистрирует обработчик для указанной темы и возвращает функцию
// отписки. Отписка безопасна при повторном вызове.
func (b *Bus) Subscribe(topic Topic, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.subs[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish доставляет уведомление всем подписчикам темы. Доставка
// синхронная, порядок обхода подписчиков не определён.
func (b *Bus) Publish(msg Message) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[msg.Topic]))
	for _, h := range b.subs[msg.Topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		deliver(h, msg)
	}
}

func deliver(h Handler, msg Message) {
	defer func() {
		_ = recover()
	}()
	h(msg)
}
