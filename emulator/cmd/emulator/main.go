package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/Krimson/posture-monitory/emulator/internal/emulator"
	"github.com/Krimson/posture-monitory/emulator/internal/profile"
	"github.com/Krimson/posture-monitory/emulator/internal/senders"
)

func main() {
	var (
		serverAddr  = flag.String("server", "localhost:50051", "Адрес gRPC сервера монитора")
		monitorID   = flag.String("monitor-id", "desk-1", "ID монитора")
		profileName = flag.String("profile", "default", "Сценарий позы: "+strings.Join(profile.Names(), ", "))
		rate        = flag.Duration("rate", 100*time.Millisecond, "Интервал между кадрами")
		jitter      = flag.Duration("jitter", 10*time.Millisecond, "Случайное отклонение интервала")
		duration    = flag.Duration("duration", 0, "Длительность эмуляции, 0 - до Ctrl+C")
		noise       = flag.Float64("noise", 3, "Дрожание ключевых точек, пиксели")
		seed        = flag.Int64("seed", time.Now().UnixNano(), "Seed генератора шума")
		width       = flag.Float64("width", 640, "Ширина кадра")
		height      = flag.Float64("height", 480, "Высота кадра")
		imagePath   = flag.String("image", "", "JPEG, прикладываемый к кадрам")
		output      = flag.String("output", "", "Дублировать кадры в JSONL файл")
		offline     = flag.Bool("offline", false, "Не подключаться к серверу, только писать в файл")
	)
	flag.Parse()

	if err := validate(*rate, *offline, *output); err != nil {
		log.Fatalf("[FATAL] Invalid flags: %v", err)
	}

	p, err := profile.Lookup(*profileName)
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	var image []byte
	if *imagePath != "" {
		image, err = os.ReadFile(*imagePath)
		if err != nil {
			log.Fatalf("[FATAL] Failed to read image: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sender senders.MultiSender
	if !*offline {
		grpcSender, err := senders.NewGRPCSender(ctx, *serverAddr)
		if err != nil {
			log.Fatalf("[FATAL] Failed to create gRPC client: %v", err)
		}
		log.Printf("[INFO] Streaming frames to %s", *serverAddr)
		sender = append(sender, grpcSender)
	}
	if *output != "" {
		writer, err := senders.NewJSONLWriter(senders.JSONLConfig{FilePath: *output, CreateDir: true})
		if err != nil {
			log.Fatalf("[FATAL] Failed to open output: %v", err)
		}
		log.Printf("[INFO] Writing frames to %s", *output)
		sender = append(sender, writer)
	}
	defer func() {
		if err := sender.Close(); err != nil {
			log.Printf("[WARN] Close senders: %v", err)
		}
	}()

	generator := profile.NewGenerator(p, profile.GeneratorConfig{
		MonitorID: *monitorID,
		Width:     *width,
		Height:    *height,
		Noise:     *noise,
		Seed:      *seed,
		Image:     image,
	})

	// Обработка сигналов для graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[INFO] Received shutdown signal...")
		cancel()
	}()

	log.Printf("[INFO] Profile %s, monitor %s", p.Name, *monitorID)
	emulator.NewEmulator(generator, sender, emulator.Config{
		Rate:     *rate,
		Jitter:   *jitter,
		Duration: *duration,
	}).Run(ctx)
}

func validate(rate time.Duration, offline bool, output string) error {
	if rate <= 0 {
		return fmt.Errorf("rate must be positive, got %s", rate)
	}
	if offline && output == "" {
		return fmt.Errorf("--offline requires --output")
	}
	return nil
}
