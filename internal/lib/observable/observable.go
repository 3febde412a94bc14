// Package observable реализует наблюдаемое значение: одно текущее значение,
// рассылка изменений N подписчикам и повтор последнего значения при подписке.
package observable

import (
	"slices"
	"sync"
)

// Value хранит текущее значение и список подписчиков.
// Уведомления доставляются синхронно в порядке вызовов Set.
// Обработчик не должен синхронно вызывать Set или Subscribe того же Value.
type Value[T any] struct {
	mu     sync.Mutex
	notify sync.Mutex
	value  T
	nextID int
	subs   map[int]func(T)
}

// Subscription отменяет подписку.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// New создаёт Value с начальным значением.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		value: initial,
		subs:  make(map[int]func(T)),
	}
}

// Get возвращает текущее значение.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Set сохраняет значение и уведомляет подписчиков.
func (v *Value[T]) Set(value T) {
	v.notify.Lock()
	defer v.notify.Unlock()

	v.mu.Lock()
	v.value = value
	handlers := v.snapshot()
	v.mu.Unlock()

	for _, h := range handlers {
		h(value)
	}
}

// Subscribe регистрирует обработчик и сразу вызывает его с текущим значением.
func (v *Value[T]) Subscribe(onChange func(T)) *Subscription {
	v.notify.Lock()
	defer v.notify.Unlock()

	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = onChange
	current := v.value
	v.mu.Unlock()

	onChange(current)

	return &Subscription{cancel: func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}}
}

// Subscribers возвращает число активных подписчиков.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

func (v *Value[T]) snapshot() []func(T) {
	ids := make([]int, 0, len(v.subs))
	for id := range v.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]func(T), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, v.subs[id])
	}
	return handlers
}

// Cancel отменяет подписку. Повторные вызовы ничего не делают.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}
