package connectivity

import "sync"

// Signal наблюдаемый признак "онлайн" с уведомлениями о переходах
type Signal interface {
	Online() bool
	// Subscribe возвращает канал переходов и функцию отписки
	Subscribe() (<-chan bool, func())
}

// state общая часть реализаций: текущее значение и подписчики
type state struct {
	mu     sync.RWMutex
	online bool
	subs   map[int]chan bool
	nextID int
}

func (s *state) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

func (s *state) Subscribe() (<-chan bool, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int]chan bool)
	}
	id := s.nextID
	s.nextID++
	ch := make(chan bool, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// set меняет значение; подписчики получают только переходы
func (s *state) set(online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.online == online {
		return false
	}
	s.online = online

	for _, ch := range s.subs {
		// Медленному подписчику важно только последнее значение
		select {
		case <-ch:
		default:
		}
		ch <- online
	}

	return true
}

// Manual сигнал, управляемый явно (тесты, режим --offline)
type Manual struct {
	state
}

func NewManual(online bool) *Manual {
	m := &Manual{}
	m.online = online
	return m
}

func (m *Manual) Set(online bool) {
	m.set(online)
}
