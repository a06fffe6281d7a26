package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"monitor-service/internal/config"
)

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "monitor.log")
	logger, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "json", Output: path, MaxSize: 1})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	NewMonitorLogger(logger, "/dev/ttyACM0", "Arduino Uno").LogConnection("open", 9600, nil)
	if err := CloseLogger(logger); err != nil {
		t.Fatalf("CloseLogger: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not json: %q", data)
	}
	if entry["port"] != "/dev/ttyACM0" || entry["component"] != "monitor" || entry["message"] != "Monitor connection event" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(&config.LoggingConfig{Level: "loud", Output: "stderr"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(RequestIDKey, "req-1")

	ErrorResponse(c, http.StatusUnprocessableEntity, "Connect failed", errors.New("port busy"))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", w.Code)
	}
	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.RequestID != "req-1" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Error == nil || resp.Error.Code != "MONITOR_ERROR" || resp.Error.Details != "port busy" {
		t.Errorf("error = %+v", resp.Error)
	}
}
