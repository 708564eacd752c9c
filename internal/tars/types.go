package tars

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const tarsTimestampLayout = "2006-01-02 15:04:05"

// Timestamp decodes the mix of epoch floats, numeric strings and formatted
// dates the server emits. A zero Timestamp means the field was absent or null.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		t.Time = parseTime(raw)
		return nil
	}
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	t.Time = epoch(secs)
	return nil
}

// MarshalJSON encodes the timestamp as epoch seconds, or null when unset.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	secs := float64(t.UnixNano()) / float64(time.Second)
	return []byte(strconv.FormatFloat(secs, 'f', -1, 64)), nil
}

// Worker mirrors one entry of GET workers/status and the workers_info stream.
type Worker struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Idle        bool              `json:"idle"`
	Paused      bool              `json:"paused"`
	CurrentFile string            `json:"current_file,omitempty"`
	CurrentTask *int64            `json:"current_task,omitempty"`
	StartTime   Timestamp         `json:"start_time"`
	GPU         *WorkerGPU        `json:"gpu,omitempty"`
	Subprocess  *WorkerSubprocess `json:"subprocess,omitempty"`
}

// WorkerGPU describes the device assigned to a worker.
type WorkerGPU struct {
	DeviceID string `json:"device_id"`
	Type     string `json:"type"`
}

// WorkerSubprocess reports the running encoder process. The server sends
// every field as a string.
type WorkerSubprocess struct {
	PID     string `json:"pid"`
	Percent string `json:"percent"`
	Elapsed string `json:"elapsed"`
}

// WorkerStatus is the single display state of a worker.
type WorkerStatus string

const (
	WorkerActive WorkerStatus = "active"
	WorkerIdle   WorkerStatus = "idle"
	WorkerPaused WorkerStatus = "paused"
)

// Status resolves the display state. Paused wins over idle, idle over active.
func (w Worker) Status() WorkerStatus {
	switch {
	case w.Paused:
		return WorkerPaused
	case w.Idle:
		return WorkerIdle
	default:
		return WorkerActive
	}
}

// WorkersResponse mirrors GET workers/status.
type WorkersResponse struct {
	Workers []Worker `json:"workers"`
}

// QueueTask is a pending work item. Server order is significant.
type QueueTask struct {
	ID        int64     `json:"id"`
	LibraryID int64     `json:"library_id"`
	AbsPath   string    `json:"abspath"`
	Priority  int64     `json:"priority"`
	CreatedAt Timestamp `json:"created_at"`
}

// HistoryTask is a terminal task record.
type HistoryTask struct {
	ID                int64     `json:"id"`
	LibraryID         int64     `json:"library_id"`
	AbsPath           string    `json:"abspath"`
	TaskLabel         string    `json:"task_label"`
	TaskSuccess       bool      `json:"task_success"`
	ProcessedByWorker string    `json:"processed_by_worker"`
	StartTime         Timestamp `json:"start_time"`
	FinishTime        Timestamp `json:"finish_time"`
}

// Duration returns how long the task ran, or zero when either end is unknown.
func (h HistoryTask) Duration() time.Duration {
	if h.StartTime.IsZero() || h.FinishTime.IsZero() || h.FinishTime.Before(h.StartTime.Time) {
		return 0
	}
	return h.FinishTime.Sub(h.StartTime.Time)
}

// Page is the paginated table payload shared by pending and history listings.
type Page[T any] struct {
	Data         []T `json:"data"`
	RecordsTotal int `json:"recordsTotal"`
}

// PageRequest is the body of the paginated listing endpoints.
type PageRequest struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// FrontendMessage is a notification the server pushes to connected dashboards.
type FrontendMessage struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Timeout int    `json:"timeout"`
}

// GPUStatus mirrors GET health/gpu.
type GPUStatus struct {
	Enabled           bool            `json:"enabled"`
	TotalDevices      int             `json:"total_devices"`
	AvailableDevices  int             `json:"available_devices"`
	ActiveAllocations int             `json:"active_allocations"`
	MaxWorkersPerGPU  int             `json:"max_workers_per_gpu"`
	Strategy          string          `json:"strategy"`
	Devices           []GPUDevice     `json:"devices"`
	Allocations       []GPUAllocation `json:"allocations"`
}

// GPUDevice is one detected accelerator.
type GPUDevice struct {
	DeviceID string `json:"device_id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
}

// GPUAllocation binds a worker to a device.
type GPUAllocation struct {
	WorkerID string `json:"worker_id"`
	DeviceID string `json:"device_id"`
}

// Settings is the opaque settings document. The form that edits it lives
// outside this client.
type Settings map[string]any

func epoch(secs float64) time.Time {
	if secs <= 0 {
		return time.Time{}
	}
	whole := int64(secs)
	frac := int64((secs - float64(whole)) * float64(time.Second))
	return time.Unix(whole, frac)
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return epoch(secs)
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(tarsTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
