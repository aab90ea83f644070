package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Krimson/posture-monitory/monitor/internal/clock"
	"github.com/Krimson/posture-monitory/monitor/internal/pose"
)

// MemoryStore реализует CacheStore в памяти, когда Redis недоступен
type MemoryStore struct {
	mutex       sync.RWMutex
	clock       clock.Clock
	baselineTTL time.Duration

	baselines   map[string]cachedBaseline
	alertDelays map[string]time.Duration
	evidence    map[string][]Evidence
}

type cachedBaseline struct {
	frame     *pose.Frame
	expiresAt time.Time // нулевое значение - без срока
}

func NewMemoryStore(clk clock.Clock, baselineTTL time.Duration) *MemoryStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryStore{
		clock:       clk,
		baselineTTL: baselineTTL,
		baselines:   make(map[string]cachedBaseline),
		alertDelays: make(map[string]time.Duration),
		evidence:    make(map[string][]Evidence),
	}
}

func (s *MemoryStore) SetBaseline(ctx context.Context, monitorID string, frame *pose.Frame) error {
	entry := cachedBaseline{frame: frame.Clone()}
	if s.baselineTTL > 0 {
		entry.expiresAt = s.clock.Now().Add(s.baselineTTL)
	}

	s.mutex.Lock()
	s.baselines[monitorID] = entry
	s.mutex.Unlock()
	return nil
}

func (s *MemoryStore) GetBaseline(ctx context.Context, monitorID string) (*pose.Frame, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, ok := s.baselines[monitorID]
	if !ok {
		return nil, fmt.Errorf("baseline for monitor %s: %w", monitorID, ErrNotFound)
	}
	// Имитация TTL: просроченная запись удаляется при чтении
	if !entry.expiresAt.IsZero() && !s.clock.Now().Before(entry.expiresAt) {
		delete(s.baselines, monitorID)
		return nil, fmt.Errorf("baseline for monitor %s: %w", monitorID, ErrNotFound)
	}
	return entry.frame.Clone(), nil
}

func (s *MemoryStore) DeleteBaseline(ctx context.Context, monitorID string) error {
	s.mutex.Lock()
	delete(s.baselines, monitorID)
	s.mutex.Unlock()
	return nil
}

func (s *MemoryStore) SetAlertDelay(ctx context.Context, monitorID string, delay time.Duration) error {
	s.mutex.Lock()
	s.alertDelays[monitorID] = delay
	s.mutex.Unlock()
	return nil
}

func (s *MemoryStore) GetAlertDelay(ctx context.Context, monitorID string) (time.Duration, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	delay, ok := s.alertDelays[monitorID]
	if !ok {
		return 0, fmt.Errorf("alert delay for monitor %s: %w", monitorID, ErrNotFound)
	}
	return delay, nil
}

func (s *MemoryStore) AppendEvidence(ctx context.Context, monitorID string, evidence Evidence) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	list := append(s.evidence[monitorID], evidence)
	if len(list) > maxCachedEvidence {
		list = list[len(list)-maxCachedEvidence:]
	}
	s.evidence[monitorID] = list
	return nil
}

func (s *MemoryStore) GetEvidence(ctx context.Context, monitorID string) ([]Evidence, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	list := make([]Evidence, len(s.evidence[monitorID]))
	copy(list, s.evidence[monitorID])
	return list, nil
}

func (s *MemoryStore) ClearEvidence(ctx context.Context, monitorID string) error {
	s.mutex.Lock()
	delete(s.evidence, monitorID)
	s.mutex.Unlock()
	return nil
}

func (s *MemoryStore) DeleteMonitor(ctx context.Context, monitorID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.baselines, monitorID)
	delete(s.alertDelays, monitorID)
	delete(s.evidence, monitorID)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// MemoryRepository реализует Repository в памяти, когда PostgreSQL недоступен
type MemoryRepository struct {
	mutex    sync.RWMutex
	sessions map[string]*SessionRecord
	alerts   []Alert
	evidence []Evidence
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*SessionRecord),
	}
}

func (p *MemoryRepository) SaveSession(ctx context.Context, record *SessionRecord) error {
	recordCopy := *record

	p.mutex.Lock()
	p.sessions[record.ID] = &recordCopy
	p.mutex.Unlock()
	return nil
}

func (p *MemoryRepository) ListSessions(ctx context.Context, monitorID string, limit, offset int) ([]*SessionRecord, error) {
	p.mutex.RLock()
	var records []*SessionRecord
	for _, record := range p.sessions {
		if record.MonitorID == monitorID {
			recordCopy := *record
			records = append(records, &recordCopy)
		}
	}
	p.mutex.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	if offset >= len(records) {
		return nil, nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

func (p *MemoryRepository) SaveAlert(ctx context.Context, alert Alert) error {
	p.mutex.Lock()
	p.alerts = append(p.alerts, alert)
	p.mutex.Unlock()
	return nil
}

func (p *MemoryRepository) SaveEvidence(ctx context.Context, evidence Evidence) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, ev := range p.evidence {
		if ev.ID == evidence.ID {
			return nil
		}
	}
	p.evidence = append(p.evidence, evidence)
	return nil
}

func (p *MemoryRepository) ListEvidence(ctx context.Context, monitorID, sessionID string) ([]Evidence, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	var evidence []Evidence
	for _, ev := range p.evidence {
		if ev.MonitorID == monitorID && ev.SessionID == sessionID {
			evidence = append(evidence, ev)
		}
	}
	return evidence, nil
}

// Alerts возвращает сохраненные оповещения монитора
func (p *MemoryRepository) Alerts(monitorID string) []Alert {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	var alerts []Alert
	for _, alert := range p.alerts {
		if alert.MonitorID == monitorID {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

func (p *MemoryRepository) DeleteMonitor(ctx context.Context, monitorID string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for id, record := range p.sessions {
		if record.MonitorID == monitorID {
			delete(p.sessions, id)
		}
	}

	alerts := p.alerts[:0]
	for _, alert := range p.alerts {
		if alert.MonitorID != monitorID {
			alerts = append(alerts, alert)
		}
	}
	p.alerts = alerts

	evidence := p.evidence[:0]
	for _, ev := range p.evidence {
		if ev.MonitorID != monitorID {
			evidence = append(evidence, ev)
		}
	}
	p.evidence = evidence
	return nil
}

func (p *MemoryRepository) Ping(ctx context.Context) error { return nil }
