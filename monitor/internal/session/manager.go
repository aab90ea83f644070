package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Krimson/posture-monitory/monitor/internal/clock"
	"github.com/Krimson/posture-monitory/monitor/internal/feed"
	"github.com/Krimson/posture-monitory/monitor/internal/pose"
	"github.com/Krimson/posture-monitory/monitor/internal/posture"
)

const persistTimeout = 5 * time.Second

// ManagerConfig содержит общие настройки мониторов
type ManagerConfig struct {
	Classifier  *posture.Classifier
	Clock       clock.Clock
	AlertDelay  time.Duration
	IdleTimeout time.Duration
	Alerts      AlertSink
	Observer    Observer
}

// monitorEntry объединяет монитор, последний видеокадр и насос кадров
type monitorEntry struct {
	monitor *Monitor
	image   *LatestImage
	pump    *feed.Pump
}

// MonitorView представляет состояние монитора вместе со статистикой потока
type MonitorView struct {
	Status
	Feed feed.Stats `json:"feed"`
}

// Manager управляет мониторами осанки (Application Layer)
type Manager struct {
	cache      CacheStore
	repository Repository
	cfg        ManagerConfig

	mu       sync.RWMutex
	monitors map[string]*monitorEntry // Активные мониторы в памяти
}

// NewManager создает новый менеджер мониторов
func NewManager(cache CacheStore, repository Repository, cfg ManagerConfig) *Manager {
	if cfg.Classifier == nil {
		cfg.Classifier = posture.NewClassifier(posture.DefaultOptions())
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Alerts == nil {
		cfg.Alerts = LogSink{}
	}

	return &Manager{
		cache:      cache,
		repository: repository,
		cfg:        cfg,
		monitors:   make(map[string]*monitorEntry),
	}
}

// Open возвращает монитор, создавая его при необходимости.
// Новый монитор восстанавливает эталон, задержку и снимки из кэша.
func (m *Manager) Open(ctx context.Context, monitorID string) (*Monitor, error) {
	entry, err := m.getOrOpen(ctx, monitorID)
	if err != nil {
		return nil, err
	}
	return entry.monitor, nil
}

func (m *Manager) getOrOpen(ctx context.Context, monitorID string) (*monitorEntry, error) {
	if monitorID == "" {
		return nil, ErrInvalidMonitorID
	}

	// Сначала проверяем в памяти (быстро)
	m.mu.RLock()
	if entry, ok := m.monitors[monitorID]; ok {
		m.mu.RUnlock()
		return entry, nil
	}
	m.mu.RUnlock()

	entry := m.newEntry(monitorID)
	m.restore(ctx, entry.monitor)

	m.mu.Lock()
	if existing, ok := m.monitors[monitorID]; ok {
		m.mu.Unlock()
		entry.close()
		return existing, nil
	}
	m.monitors[monitorID] = entry
	m.mu.Unlock()

	log.Printf("[SESSION] Opened monitor: %s", monitorID)
	return entry, nil
}

func (m *Manager) newEntry(monitorID string) *monitorEntry {
	image := NewLatestImage()

	monitor := NewMonitor(monitorID, MonitorConfig{
		Classifier: m.cfg.Classifier,
		Clock:      m.cfg.Clock,
		AlertDelay: m.cfg.AlertDelay,
		Alerts:     m.cfg.Alerts,
		Capture:    image,
		Observer:   Observers{ObserverFunc(m.persist), m.cfg.Observer},
	})

	pump := feed.NewPump(monitorID, feed.SinkFunc(func(ctx context.Context, item feed.Item) error {
		monitor.Observe(item.Frame)
		return nil
	}), m.cfg.IdleTimeout)

	return &monitorEntry{
		monitor: monitor,
		image:   image,
		pump:    pump,
	}
}

func (e *monitorEntry) close() {
	e.pump.Stop()
	e.monitor.Close()
}

// restore загружает сохраненное состояние монитора. Отсутствие данных не ошибка.
func (m *Manager) restore(ctx context.Context, monitor *Monitor) {
	id := monitor.ID()

	if frame, err := m.cache.GetBaseline(ctx, id); err == nil {
		monitor.RestoreBaseline(frame)
		log.Printf("[SESSION] Restored baseline for monitor %s", id)
	} else if !errors.Is(err, ErrNotFound) {
		log.Printf("[WARN] Failed to load baseline for monitor %s: %v", id, err)
	}

	if delay, err := m.cache.GetAlertDelay(ctx, id); err == nil {
		if err := monitor.SetAlertDelay(delay); err != nil {
			log.Printf("[WARN] Ignoring stored alert delay %s for monitor %s: %v", delay, id, err)
		}
	} else if !errors.Is(err, ErrNotFound) {
		log.Printf("[WARN] Failed to load alert delay for monitor %s: %v", id, err)
	}

	if evidence, err := m.cache.GetEvidence(ctx, id); err == nil {
		monitor.RestoreEvidence(evidence)
	} else {
		log.Printf("[WARN] Failed to load evidence for monitor %s: %v", id, err)
	}
}

// persist сохраняет побочные результаты автомата: оповещения, снимки и итоги сессий
func (m *Manager) persist(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	switch ev.Type {
	case EventAlert:
		if err := m.repository.SaveAlert(ctx, *ev.Alert); err != nil {
			log.Printf("[WARN] Failed to save alert for monitor %s: %v", ev.MonitorID, err)
		}

	case EventEvidenceCaptured:
		if err := m.cache.AppendEvidence(ctx, ev.MonitorID, *ev.Evidence); err != nil {
			log.Printf("[WARN] Failed to cache evidence for monitor %s: %v", ev.MonitorID, err)
		}
		if err := m.repository.SaveEvidence(ctx, *ev.Evidence); err != nil {
			log.Printf("[WARN] Failed to save evidence for monitor %s: %v", ev.MonitorID, err)
		}

	case EventStateChanged:
		if ev.Record == nil {
			return
		}
		if err := m.repository.SaveSession(ctx, ev.Record); err != nil {
			log.Printf("[ERROR] Failed to archive session %s: %v", ev.Record.ID, err)
		}
	}
}

// Get возвращает открытый монитор
func (m *Manager) Get(monitorID string) (*Monitor, error) {
	entry, err := m.get(monitorID)
	if err != nil {
		return nil, err
	}
	return entry.monitor, nil
}

func (m *Manager) get(monitorID string) (*monitorEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.monitors[monitorID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMonitorNotFound, monitorID)
	}
	return entry, nil
}

// Publish принимает кадр от клиента. Монитор создается автоматически при первом кадре.
// image - последний видеокадр, используется как снимок при оповещении.
func (m *Manager) Publish(ctx context.Context, monitorID string, frame *pose.Frame, image []byte) (bool, error) {
	entry, err := m.getOrOpen(ctx, monitorID)
	if err != nil {
		return false, err
	}

	entry.image.Update(image)
	return entry.pump.Publish(feed.Item{MonitorID: monitorID, Frame: frame}), nil
}

// View возвращает состояние монитора и статистику потока
func (m *Manager) View(monitorID string) (*MonitorView, error) {
	entry, err := m.get(monitorID)
	if err != nil {
		return nil, err
	}
	return &MonitorView{
		Status: entry.monitor.Status(),
		Feed:   entry.pump.GetStats(),
	}, nil
}

// StartSession запускает сессию мониторинга и очищает снимки в кэше
func (m *Manager) StartSession(ctx context.Context, monitorID string) (string, error) {
	monitor, err := m.Get(monitorID)
	if err != nil {
		return "", err
	}

	sessionID, err := monitor.StartSession()
	if err != nil {
		return "", err
	}

	if err := m.cache.ClearEvidence(ctx, monitorID); err != nil {
		log.Printf("[WARN] Failed to clear cached evidence for monitor %s: %v", monitorID, err)
	}

	return sessionID, nil
}

// EndSession завершает сессию. Итог архивируется через событие автомата.
func (m *Manager) EndSession(ctx context.Context, monitorID string) (*SessionRecord, error) {
	monitor, err := m.Get(monitorID)
	if err != nil {
		return nil, err
	}
	return monitor.EndSession()
}

// SaveBaseline сохраняет текущую позу как эталон
func (m *Manager) SaveBaseline(ctx context.Context, monitorID string) (*pose.Frame, error) {
	monitor, err := m.Get(monitorID)
	if err != nil {
		return nil, err
	}

	baseline, err := monitor.SaveBaseline()
	if err != nil {
		return nil, err
	}

	if err := m.cache.SetBaseline(ctx, monitorID, baseline); err != nil {
		log.Printf("[WARN] Failed to cache baseline for monitor %s: %v", monitorID, err)
	}

	log.Printf("[SESSION] Saved baseline for monitor %s", monitorID)
	return baseline, nil
}

// ResetBaseline удаляет эталон
func (m *Manager) ResetBaseline(ctx context.Context, monitorID string) error {
	monitor, err := m.Get(monitorID)
	if err != nil {
		return err
	}

	monitor.ResetBaseline()

	if err := m.cache.DeleteBaseline(ctx, monitorID); err != nil {
		log.Printf("[WARN] Failed to delete cached baseline for monitor %s: %v", monitorID, err)
	}

	log.Printf("[SESSION] Reset baseline for monitor %s", monitorID)
	return nil
}

// Baseline возвращает текущий эталон или ErrNotFound
func (m *Manager) Baseline(monitorID string) (*pose.Frame, error) {
	monitor, err := m.Get(monitorID)
	if err != nil {
		return nil, err
	}

	baseline := monitor.Baseline()
	if baseline == nil {
		return nil, fmt.Errorf("baseline for monitor %s: %w", monitorID, ErrNotFound)
	}
	return baseline, nil
}

// SetAlertDelay меняет задержку оповещения для следующих эпизодов
func (m *Manager) SetAlertDelay(ctx context.Context, monitorID string, delay time.Duration) error {
	monitor, err := m.Get(monitorID)
	if err != nil {
		return err
	}

	if err := monitor.SetAlertDelay(delay); err != nil {
		return err
	}

	if err := m.cache.SetAlertDelay(ctx, monitorID, delay); err != nil {
		log.Printf("[WARN] Failed to cache alert delay for monitor %s: %v", monitorID, err)
	}
	return nil
}

// Evidence возвращает снимки текущей или последней сессии
func (m *Manager) Evidence(monitorID string) ([]Evidence, error) {
	monitor, err := m.Get(monitorID)
	if err != nil {
		return nil, err
	}
	return monitor.Evidence(), nil
}

// History возвращает архив завершенных сессий монитора
func (m *Manager) History(ctx context.Context, monitorID string, limit, offset int) ([]*SessionRecord, error) {
	return m.repository.ListSessions(ctx, monitorID, limit, offset)
}

// SessionEvidence возвращает снимки архивной сессии
func (m *Manager) SessionEvidence(ctx context.Context, monitorID, sessionID string) ([]Evidence, error) {
	return m.repository.ListEvidence(ctx, monitorID, sessionID)
}

// Close закрывает монитор. Активная сессия завершается и архивируется.
// purge удаляет все сохраненные данные монитора.
func (m *Manager) Close(ctx context.Context, monitorID string, purge bool) error {
	m.mu.Lock()
	entry, ok := m.monitors[monitorID]
	delete(m.monitors, monitorID)
	m.mu.Unlock()

	if ok {
		m.shutdown(entry)
	}

	if purge {
		if err := m.cache.DeleteMonitor(ctx, monitorID); err != nil {
			log.Printf("[WARN] Failed to delete monitor %s from cache: %v", monitorID, err)
		}
		if err := m.repository.DeleteMonitor(ctx, monitorID); err != nil {
			return fmt.Errorf("failed to delete monitor from database: %w", err)
		}
		log.Printf("[SESSION] Purged monitor: %s", monitorID)
		return nil
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrMonitorNotFound, monitorID)
	}
	return nil
}

func (m *Manager) shutdown(entry *monitorEntry) {
	entry.pump.Stop()
	if _, err := entry.monitor.EndSession(); err != nil && !errors.Is(err, ErrNotMonitoring) {
		log.Printf("[WARN] Failed to end session on monitor %s: %v", entry.monitor.ID(), err)
	}
	entry.monitor.Close()
	log.Printf("[SESSION] Closed monitor: %s", entry.monitor.ID())
}

// CloseAll закрывает все мониторы при остановке сервиса
func (m *Manager) CloseAll() {
	m.mu.Lock()
	entries := make([]*monitorEntry, 0, len(m.monitors))
	for id, entry := range m.monitors {
		entries = append(entries, entry)
		delete(m.monitors, id)
	}
	m.mu.Unlock()

	for _, entry := range entries {
		m.shutdown(entry)
	}
}

// MonitorIDs возвращает идентификаторы открытых мониторов
func (m *Manager) MonitorIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.monitors))
	for id := range m.monitors {
		ids = append(ids, id)
	}
	return ids
}

// Ping проверяет доступность хранилищ
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.cache.Ping(ctx); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := m.repository.Ping(ctx); err != nil {
		return fmt.Errorf("repository: %w", err)
	}
	return nil
}
