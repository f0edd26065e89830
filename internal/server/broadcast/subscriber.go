package broadcast

import (
	"errors"
	"sync"

	"github.com/iudanet/tallysync/pkg/api"
)

var (
	// ErrSubscriberClosed запись в закрытый канал подписчика
	ErrSubscriberClosed = errors.New("subscriber closed")
	// ErrSubscriberFull подписчик не успевает читать события
	ErrSubscriberFull = errors.New("subscriber buffer full")
)

// DefaultBuffer размер очереди подписчика по умолчанию
const DefaultBuffer = 256

// Channel endpoint одного подписчика. Write не должен блокироваться.
type Channel interface {
	Write(msg api.Message) error
	Close()
}

// Subscriber канал подписчика на основе ограниченной очереди.
// Публикующая сторона пишет через Write, обработчик соединения читает Messages.
type Subscriber struct {
	messages chan api.Message
	done     chan struct{}
	once     sync.Once
}

// NewSubscriber создает подписчика с очередью размера buffer
func NewSubscriber(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Subscriber{
		messages: make(chan api.Message, buffer),
		done:     make(chan struct{}),
	}
}

// Write ставит сообщение в очередь. Переполнение считается ошибкой записи:
// медленный подписчик отключается и получит свежий snapshot при переподключении.
func (s *Subscriber) Write(msg api.Message) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}

	select {
	case s.messages <- msg:
		return nil
	default:
		return ErrSubscriberFull
	}
}

// Close закрывает подписчика. Повторный вызов безопасен.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Messages возвращает очередь сообщений
func (s *Subscriber) Messages() <-chan api.Message {
	return s.messages
}

// Done закрывается, когда подписчик отключен
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}
