package senders

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Krimson/posture-monitory/proto/keypoint"
)

// JSONLWriter записывает кадры построчно в JSONL файл
type JSONLWriter struct {
	writer    *bufio.Writer
	file      *os.File
	mu        sync.Mutex
	filePath  string
	autoFlush bool
	stats     WriteStats
}

// WriteStats содержит статистику записи
type WriteStats struct {
	TotalLines    int64     `json:"total_lines"`
	TotalBytes    int64     `json:"total_bytes"`
	LastWriteTime time.Time `json:"last_write_time"`
	ErrorsCount   int64     `json:"errors_count"`
}

// JSONLConfig конфигурация JSONL писателя
type JSONLConfig struct {
	FilePath   string
	AutoFlush  bool
	BufferSize int
	CreateDir  bool
	FilePerm   os.FileMode
}

// NewJSONLWriter создает новый JSONL писатель
func NewJSONLWriter(config JSONLConfig) (*JSONLWriter, error) {
	if config.CreateDir {
		dir := filepath.Dir(config.FilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if config.FilePerm == 0 {
		config.FilePerm = 0644
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, config.FilePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	var writer *bufio.Writer
	if config.BufferSize > 0 {
		writer = bufio.NewWriterSize(file, config.BufferSize)
	} else {
		writer = bufio.NewWriter(file)
	}

	return &JSONLWriter{
		writer:    writer,
		file:      file,
		filePath:  config.FilePath,
		autoFlush: config.AutoFlush,
	}, nil
}

// Send записывает один кадр. Изображение в файл не попадает.
func (j *JSONLWriter) Send(frame *keypoint.FrameMessage) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.writer == nil {
		return ErrClosed
	}

	line := *frame
	line.Image = nil

	jsonData, err := json.Marshal(line)
	if err != nil {
		j.stats.ErrorsCount++
		return fmt.Errorf("JSON marshaling failed: %w", err)
	}

	if _, err := j.writer.Write(append(jsonData, '\n')); err != nil {
		j.stats.ErrorsCount++
		return fmt.Errorf("write failed: %w", err)
	}

	if j.autoFlush {
		if err := j.writer.Flush(); err != nil {
			j.stats.ErrorsCount++
			return fmt.Errorf("flush failed: %w", err)
		}
	}

	j.stats.TotalLines++
	j.stats.TotalBytes += int64(len(jsonData) + 1)
	j.stats.LastWriteTime = time.Now()
	return nil
}

// Flush принудительно сбрасывает буфер в файл
func (j *JSONLWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.writer == nil {
		return ErrClosed
	}
	return j.writer.Flush()
}

// Close закрывает файл и освобождает ресурсы
func (j *JSONLWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.writer != nil {
		if err := j.writer.Flush(); err != nil {
			return fmt.Errorf("final flush failed: %w", err)
		}
	}
	if j.file != nil {
		if err := j.file.Close(); err != nil {
			return fmt.Errorf("file close failed: %w", err)
		}
	}

	j.writer = nil
	j.file = nil
	return nil
}

// GetStats возвращает текущую статистику записи
func (j *JSONLWriter) GetStats() WriteStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}
