package feed

import (
	"context"
	"log"
	"sync"
	"time"
)

const consumeTimeout = 5 * time.Second

// Pump доставляет кадры одного монитора в Sink по одному.
// Publish никогда не блокирует: необработанный кадр заменяется новым и считается потерянным.
type Pump struct {
	monitorID   string
	sink        Sink
	idleTimeout time.Duration

	mu           sync.Mutex
	slot         *Item
	lastReceived time.Time
	idleSent     bool

	signal   chan struct{}
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	stats struct {
		mu        sync.RWMutex
		received  int64
		dropped   int64
		processed int64
		idle      int64
	}
}

// NewPump запускает насос. idleTimeout <= 0 отключает синтетические кадры простоя.
func NewPump(monitorID string, sink Sink, idleTimeout time.Duration) *Pump {
	p := &Pump{
		monitorID:    monitorID,
		sink:         sink,
		idleTimeout:  idleTimeout,
		lastReceived: time.Now(),
		signal:       make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
	}

	go p.worker()
	if idleTimeout > 0 {
		go p.idleWatcher()
	}

	return p
}

// Publish кладет кадр в ящик. Возвращает false, если ранее положенный кадр был вытеснен.
func (p *Pump) Publish(item Item) bool {
	if item.ReceivedAt.IsZero() {
		item.ReceivedAt = time.Now()
	}
	if item.MonitorID == "" {
		item.MonitorID = p.monitorID
	}

	p.mu.Lock()
	replaced := p.slot != nil
	p.slot = &item
	if !item.Idle {
		p.lastReceived = item.ReceivedAt
		p.idleSent = false
	}
	p.mu.Unlock()

	p.incrementReceived()
	if replaced {
		p.incrementDropped()
	}

	select {
	case p.signal <- struct{}{}:
	default:
	}

	return !replaced
}

func (p *Pump) take() (Item, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.slot == nil {
		return Item{}, false
	}
	item := *p.slot
	p.slot = nil
	return item, true
}

func (p *Pump) worker() {
	defer close(p.done)

	for {
		select {
		case <-p.signal:
			p.drain()

		case <-p.stopChan:
			// Последний кадр обрабатывается до выхода
			p.drain()
			return
		}
	}
}

func (p *Pump) drain() {
	item, ok := p.take()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumeTimeout)
	if err := p.sink.Consume(ctx, item); err != nil {
		log.Printf("[ERROR] Failed to consume frame for monitor %s: %v", p.monitorID, err)
	}
	cancel()
	p.incrementProcessed()
}

// idleWatcher подает кадр "поза не найдена", если клиент перестал присылать кадры
func (p *Pump) idleWatcher() {
	ticker := time.NewTicker(p.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.checkIdle()

		case <-p.stopChan:
			return
		}
	}
}

func (p *Pump) checkIdle() {
	now := time.Now()

	p.mu.Lock()
	if p.idleSent || now.Sub(p.lastReceived) < p.idleTimeout {
		p.mu.Unlock()
		return
	}
	p.idleSent = true
	p.mu.Unlock()

	log.Printf("[FEED] Monitor %s idle for %s, injecting no-pose frame", p.monitorID, now.Sub(p.lastReceived).Truncate(time.Millisecond))
	p.incrementIdle()
	p.Publish(Item{ReceivedAt: now, Idle: true})
}

// Stop останавливает насос и дожидается обработки последнего кадра. Повторный вызов безопасен.
func (p *Pump) Stop() {
	p.stopOnce.Do(func() {
		log.Printf("[INFO] Stopping feed for monitor %s...", p.monitorID)
		close(p.stopChan)
		<-p.done
		p.logStats()
	})
}

// Методы для работы со статистикой
func (p *Pump) incrementReceived() {
	p.stats.mu.Lock()
	p.stats.received++
	p.stats.mu.Unlock()
}

func (p *Pump) incrementDropped() {
	p.stats.mu.Lock()
	p.stats.dropped++
	p.stats.mu.Unlock()
}

func (p *Pump) incrementProcessed() {
	p.stats.mu.Lock()
	p.stats.processed++
	p.stats.mu.Unlock()
}

func (p *Pump) incrementIdle() {
	p.stats.mu.Lock()
	p.stats.idle++
	p.stats.mu.Unlock()
}

func (p *Pump) logStats() {
	stats := p.GetStats()
	log.Printf("[STATS] monitor=%s received=%d dropped=%d processed=%d idle=%d",
		p.monitorID,
		stats.Received,
		stats.Dropped,
		stats.Processed,
		stats.Idle)
}

// GetStats возвращает снимок статистики
func (p *Pump) GetStats() Stats {
	p.stats.mu.RLock()
	defer p.stats.mu.RUnlock()

	return Stats{
		Received:  p.stats.received,
		Dropped:   p.stats.dropped,
		Processed: p.stats.processed,
		Idle:      p.stats.idle,
	}
}
