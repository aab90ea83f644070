package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Pinger проверяет доступность зависимости
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	mu       sync.RWMutex
	services map[string]grpc_health_v1.HealthCheckResponse_ServingStatus
	storage  Pinger
}

func NewHealthServer(storage Pinger) *HealthServer {
	return &HealthServer{
		services: make(map[string]grpc_health_v1.HealthCheckResponse_ServingStatus),
		storage:  storage,
	}
}

func (h *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	service := req.GetService()

	servingStatus, exists := h.services[service]
	if !exists {
		if service == "" {
			return &grpc_health_v1.HealthCheckResponse{
				Status: grpc_health_v1.HealthCheckResponse_SERVING,
			}, nil
		}
		return nil, status.Error(codes.NotFound, "service not found")
	}

	return &grpc_health_v1.HealthCheckResponse{
		Status: servingStatus,
	}, nil
}

func (h *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	response, err := h.Check(stream.Context(), req)
	if err != nil {
		return err
	}

	if err := stream.Send(response); err != nil {
		return err
	}

	<-stream.Context().Done()
	return stream.Context().Err()
}

func (h *HealthServer) SetServingStatus(service string) {
	h.setStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
}

func (h *HealthServer) SetNotServingStatus(service string) {
	h.setStatus(service, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

func (h *HealthServer) setStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.services[service] = status
}

// Report представляет ответ /healthz
type Report struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Storage  string            `json:"storage"`
}

// ServeHTTP отвечает на /healthz: 200, если все сервисы обслуживают запросы, иначе 503
func (h *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := Report{
		Status:   "ok",
		Services: make(map[string]string),
		Storage:  "ok",
	}

	h.mu.RLock()
	for service, servingStatus := range h.services {
		name := service
		if name == "" {
			name = "overall"
		}
		report.Services[name] = servingStatus.String()
		if servingStatus != grpc_health_v1.HealthCheckResponse_SERVING {
			report.Status = "unavailable"
		}
	}
	h.mu.RUnlock()

	// Хранилище с отказом не делает сервис недоступным: мониторинг работает и без него
	if h.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := h.storage.Ping(ctx); err != nil {
			report.Storage = err.Error()
		}
		cancel()
	}

	code := http.StatusOK
	if report.Status != "ok" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(report)
}
