package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Krimson/posture-monitory/monitor/internal/pose"
)

// maxCachedEvidence ограничивает список снимков в кэше
const maxCachedEvidence = 100

// RedisStore реализует CacheStore для Redis (Infrastructure Layer)
type RedisStore struct {
	client      *redis.Client
	baselineTTL time.Duration
}

// NewRedisStore создает новый экземпляр RedisStore. baselineTTL <= 0 хранит эталон без срока.
func NewRedisStore(client *redis.Client, baselineTTL time.Duration) *RedisStore {
	if baselineTTL < 0 {
		baselineTTL = 0
	}
	return &RedisStore{
		client:      client,
		baselineTTL: baselineTTL,
	}
}

// ===== Ключи Redis =====

func baselineKey(monitorID string) string {
	return fmt.Sprintf("monitor:%s:baseline", monitorID)
}

func alertDelayKey(monitorID string) string {
	return fmt.Sprintf("monitor:%s:alert_delay_ms", monitorID)
}

func evidenceKey(monitorID string) string {
	return fmt.Sprintf("monitor:%s:evidence", monitorID)
}

// ===== Эталон =====

func (r *RedisStore) SetBaseline(ctx context.Context, monitorID string, frame *pose.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}

	return r.client.Set(ctx, baselineKey(monitorID), data, r.baselineTTL).Err()
}

func (r *RedisStore) GetBaseline(ctx context.Context, monitorID string) (*pose.Frame, error) {
	data, err := r.client.Get(ctx, baselineKey(monitorID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("baseline for monitor %s: %w", monitorID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}

	var frame pose.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("failed to unmarshal baseline: %w", err)
	}

	return &frame, nil
}

func (r *RedisStore) DeleteBaseline(ctx context.Context, monitorID string) error {
	return r.client.Del(ctx, baselineKey(monitorID)).Err()
}

// ===== Задержка оповещения =====

func (r *RedisStore) SetAlertDelay(ctx context.Context, monitorID string, delay time.Duration) error {
	return r.client.Set(ctx, alertDelayKey(monitorID), delay.Milliseconds(), 0).Err()
}

func (r *RedisStore) GetAlertDelay(ctx context.Context, monitorID string) (time.Duration, error) {
	val, err := r.client.Get(ctx, alertDelayKey(monitorID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("alert delay for monitor %s: %w", monitorID, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to get alert delay: %w", err)
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse alert delay %q: %w", val, err)
	}

	return time.Duration(ms) * time.Millisecond, nil
}

// ===== Снимки =====

func (r *RedisStore) AppendEvidence(ctx context.Context, monitorID string, evidence Evidence) error {
	data, err := json.Marshal(evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	key := evidenceKey(monitorID)
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -maxCachedEvidence, -1)

	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetEvidence(ctx context.Context, monitorID string) ([]Evidence, error) {
	data, err := r.client.LRange(ctx, evidenceKey(monitorID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get evidence: %w", err)
	}

	evidence := make([]Evidence, 0, len(data))
	for _, item := range data {
		var ev Evidence
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue // Пропускаем некорректные записи
		}
		evidence = append(evidence, ev)
	}

	return evidence, nil
}

func (r *RedisStore) ClearEvidence(ctx context.Context, monitorID string) error {
	return r.client.Del(ctx, evidenceKey(monitorID)).Err()
}

// ===== Утилиты =====

func (r *RedisStore) DeleteMonitor(ctx context.Context, monitorID string) error {
	// Удаляем все ключи, связанные с монитором
	pattern := fmt.Sprintf("monitor:%s:*", monitorID)

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	pipe := r.client.Pipeline()

	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
