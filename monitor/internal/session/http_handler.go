package session

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// HTTPHandler обрабатывает HTTP команды пользователя (Presentation Layer)
type HTTPHandler struct {
	manager *Manager
}

// NewHTTPHandler создает новый HTTP обработчик
func NewHTTPHandler(manager *Manager) *HTTPHandler {
	return &HTTPHandler{
		manager: manager,
	}
}

// RegisterRoutes регистрирует маршруты в роутере
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/monitors").Subrouter()

	api.HandleFunc("", h.ListMonitors).Methods("GET")
	api.HandleFunc("/{id}", h.OpenMonitor).Methods("POST")
	api.HandleFunc("/{id}", h.GetMonitor).Methods("GET")
	api.HandleFunc("/{id}", h.CloseMonitor).Methods("DELETE")
	api.HandleFunc("/{id}/baseline", h.SaveBaseline).Methods("POST")
	api.HandleFunc("/{id}/baseline", h.ResetBaseline).Methods("DELETE")
	api.HandleFunc("/{id}/baseline", h.GetBaseline).Methods("GET")
	api.HandleFunc("/{id}/session/start", h.StartSession).Methods("POST")
	api.HandleFunc("/{id}/session/end", h.EndSession).Methods("POST")
	api.HandleFunc("/{id}/alert-delay", h.SetAlertDelay).Methods("PUT")
	api.HandleFunc("/{id}/evidence", h.GetEvidence).Methods("GET")
	api.HandleFunc("/{id}/history", h.GetHistory).Methods("GET")
	api.HandleFunc("/{id}/history/{session_id}/evidence", h.GetSessionEvidence).Methods("GET")
}

// ListMonitors возвращает открытые мониторы
// @Summary Список мониторов
// @Tags Monitors
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/monitors [get]
func (h *HTTPHandler) ListMonitors(w http.ResponseWriter, r *http.Request) {
	ids := h.manager.MonitorIDs()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"monitors": ids,
		"count":    len(ids),
	})
}

// OpenMonitor открывает монитор
// @Summary Открыть монитор
// @Description Создает монитор или возвращает существующий. Эталон и задержка восстанавливаются из кэша.
// @Tags Monitors
// @Produce json
// @Param id path string true "ID монитора"
// @Success 201 {object} MonitorView
// @Failure 400 {object} map[string]interface{}
// @Router /api/monitors/{id} [post]
func (h *HTTPHandler) OpenMonitor(w http.ResponseWriter, r *http.Request) {
	monitorID := mux.Vars(r)["id"]

	if _, err := h.manager.Open(r.Context(), monitorID); err != nil {
		respondCommandError(w, "open monitor", monitorID, err)
		return
	}

	view, err := h.manager.View(monitorID)
	if err != nil {
		respondCommandError(w, "open monitor", monitorID, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

// GetMonitor возвращает состояние монитора
// @Summary Состояние монитора
// @Tags Monitors
// @Produce json
// @Param id path string true "ID монитора"
// @Success 200 {object} MonitorView
// @Failure 404 {object} map[string]interface{}
// @Router /api/monitors/{id} [get]
func (h *HTTPHandler) GetMonitor(w http.ResponseWriter, r *http.Request) {
	monitorID := mux.Vars(r)["id"]

	view, err := h.manager.View(monitorID)
	if err != nil {
		respondCommandError(w, "get monitor", monitorID, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// CloseMonitor закрывает монитор
// @Summary Закрыть монитор
// @Description Активная сессия завершается и архивируется. purge=true удаляет все данные монитора.
// @Tags Monitors
// @Produce json
// @Param id path string true "ID монитора"
// @Param purge query bool false "Удалить сохраненные данные"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/monitors/{id} [delete]
func (h *HTTPHandler) CloseMonitor(w http.ResponseWriter, r *http.Request) {
	monitorID := mux.Vars(r)["id"]
	purge, _ := strconv.ParseBool(r.URL.Query().Get("purge"))

	if err := h.manager.Close(r.Context(), monitorID, purge); err != nil {
		respondCommandError(w, "close monitor", monitorID, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Monitor closed successfully",
		"monitor_id": monitorID,
		"purged":     purge,
	})
}

// SaveBaseline сохраняет текущую позу как эталон
// @Summary Сохранить эталонную позу
// @Tags Baseline
// @Produce json
// @Param id path string true "ID монитора"
// @Success 200 {object} BaselineResponse
// @Failure 409 {object} map[string]interface{} "В последнем кадре нет позы"
// @Router /api/monitors/{id}/baseline [post]
func (h *HTTPHandler) SaveBaseline(w http.ResponseWriter, r *http.Request) {
	monitorID := mux.Vars(r)["id"]

	baseline, err := h.manager.SaveBaseline(r.Context(), monitorID)
	if err != nil {
		respondCommandError(w, "save baseline", monitorID, err)
		return
	}
	respondJSON(w, http.StatusOK, BaselineResponse{MonitorID: monitorID, Baseline: baseline})
}

// ResetBaseline удаляет эталон
// @Summary Сбросить эталонную позу
// @Tags Baseline
// @Produce json
// @Param id path string true "ID монитора"
// @Success 200 {object} map[string]interface{}
// @Router /api/monitors/{id}/baseline [delete]
func (h *HTTPHandler) ResetBaseline(w http.ResponseWriter, r *http.Request) {
	monitorID := mux.Vars(r)["id"]

	if err := h.manager.ResetBaseline(r.Context(), monitorID); err != nil {
		respondCommandError(w, "reset baseline", monitorID, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Baseline reset successfully",
		"monitor_id": monitorID,
	})
}

// GetBaseline возвращает эталон
// @Summary Эталонная поза
// @Tags Baseline
// @Produce json
// @Param id path string true "ID монитора"
// @Success 200 {object} BaselineResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/monitors/{id}/baseline [get]
func (h *HTTPHandler) GetBaseline(w http.ResponseWriter, r *http.Request) {
	monitorID := mux.Vars(r)["id"]

	baseline, err := h.manager.Baseline(monitorID)
	if err != nil {
		respondCommandError(w, "get baseline", monitorID, err)
		return
	}
	respondJSON(w, http.StatusOK, BaselineResponse{MonitorID: monitorID, Baseline: baseline})
}

// StartSession запускает мониторинг
// @Summary Начать сессию
// @Tags Session
// @Produce json
// @Param id path string true "ID монитора"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "Сессия уже активна"
// @Router /api/monitors/{id}/session/start [post]
func (h *HTTPHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	monitorID := mux.Vars(r)["id"]

	sessionID, err := h.manager.StartSession(r.Context(), monitorID)
	if err != nil {
		respondCommandError(w, "start session", monitorID, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Session started successfully",
		"monitor_id": monitorID,
		"session_id": sessionID,
	})
}

// EndSession завершает мониторинг
// @Summary Завершить сессию
// @Tags Session
// @Produce json
// @Param id path string true "ID монитора"
// @Success 200 {object} SessionRecord
// @Failure 409 {object} map[string]interface{} "Сессия не активна"
// @Router /api/monitors/{id}/session/end [post]
func (h *HTTPHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	monitorID := mux.Vars(r)["id"]

	record, err := h.manager.EndSession(r.Context(), monitorID)
	if err != nil {
		respondCommandError(w, "end session", monitorID, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// SetAlertDelay меняет задержку оповещения
// @Summary Задержка оповещения
// @Description Применяется к следующему эпизоду плохой осанки. Минимум 1 секунда.
// @Tags Session
// @Accept json
// @Produce json
// @Param id path string true "ID монитора"
// @Param request body AlertDelayRequest true "Задержка в секундах"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/monitors/{id}/alert-delay [put]
func (h *HTTPHandler) SetAlertDelay(w http.ResponseWriter, r *http.Request) {
	monitorID := mux.Vars(r)["id"]

	var req AlertDelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	delay := time.Duration(req.Seconds * float64(time.Second))
	if err := h.manager.SetAlertDelay(r.Context(), monitorID, delay); err != nil {
		respondCommandError(w, "set alert delay", monitorID, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "Alert delay updated",
		"monitor_id":     monitorID,
		"alert_delay_ms": delay.Milliseconds(),
	})
}

// GetEvidence возвращает снимки текущей или последней сессии
// @Summary Снимки плохой осанки
// @Tags Evidence
// @Produce json
// @Param id path string true "ID монитора"
// @Param images query bool false "Включать изображения (по умолчанию true)"
// @Success 200 {object} map[string]interface{}
// @Router /api/monitors/{id}/evidence [get]
func (h *HTTPHandler) GetEvidence(w http.ResponseWriter, r *http.Request) {
	monitorID := mux.Vars(r)["id"]

	evidence, err := h.manager.Evidence(monitorID)
	if err != nil {
		respondCommandError(w, "get evidence", monitorID, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"monitor_id": monitorID,
		"evidence":   withImages(evidence, getQueryBool(r, "images", true)),
		"count":      len(evidence),
	})
}

// GetHistory возвращает архив сессий
// @Summary История сессий
// @Tags History
// @Produce json
// @Param id path string true "ID монитора"
// @Param limit query int false "Лимит" default(50)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /api/monitors/{id}/history [get]
func (h *HTTPHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	monitorID := mux.Vars(r)["id"]
	limit := getQueryInt(r, "limit", 50)
	offset := getQueryInt(r, "offset", 0)

	sessions, err := h.manager.History(r.Context(), monitorID, limit, offset)
	if err != nil {
		log.Printf("[ERROR] Failed to list history for monitor %s: %v", monitorID, err)
		respondError(w, http.StatusInternalServerError, "Failed to list history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
		"count":    len(sessions),
	})
}

// GetSessionEvidence возвращает снимки архивной сессии
// @Summary Снимки архивной сессии
// @Tags History
// @Produce json
// @Param id path string true "ID монитора"
// @Param session_id path string true "ID сессии"
// @Param images query bool false "Включать изображения (по умолчанию true)"
// @Success 200 {object} map[string]interface{}
// @Router /api/monitors/{id}/history/{session_id}/evidence [get]
func (h *HTTPHandler) GetSessionEvidence(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	monitorID := vars["id"]
	sessionID := vars["session_id"]

	evidence, err := h.manager.SessionEvidence(r.Context(), monitorID, sessionID)
	if err != nil {
		log.Printf("[ERROR] Failed to list evidence for session %s: %v", sessionID, err)
		respondError(w, http.StatusInternalServerError, "Failed to list evidence")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"monitor_id": monitorID,
		"session_id": sessionID,
		"evidence":   withImages(evidence, getQueryBool(r, "images", true)),
		"count":      len(evidence),
	})
}

// ===== Утилиты =====

func withImages(evidence []Evidence, include bool) []Evidence {
	if evidence == nil {
		return []Evidence{}
	}
	if include {
		return evidence
	}
	stripped := make([]Evidence, len(evidence))
	for i, ev := range evidence {
		ev.Image = nil
		stripped[i] = ev
	}
	return stripped
}

// statusFor сопоставляет ошибку команды HTTP статусу
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMonitorNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyMonitoring), errors.Is(err, ErrNotMonitoring),
		errors.Is(err, ErrMonitorClosed), errors.Is(err, ErrNoFrame):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidAlertDelay), errors.Is(err, ErrInvalidMonitorID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondCommandError(w http.ResponseWriter, action, monitorID string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[ERROR] Failed to %s on monitor %s: %v", action, monitorID, err)
		respondError(w, status, "Failed to "+action)
		return
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[ERROR] Failed to encode JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":  message,
		"status": status,
	})
}

func getQueryInt(r *http.Request, key string, defaultValue int) int {
	valueStr := r.URL.Query().Get(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getQueryBool(r *http.Request, key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(r.URL.Query().Get(key))
	if err != nil {
		return defaultValue
	}
	return value
}
