// Package lifecycle checks and prepares the local Ollama server that backs
// the local embedding provider: detection, startup, model pulls and health
// checks.
package lifecycle

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Aman-CERP/smarthr/internal/embed"
)

const (
	// StartupTimeout is how long to wait for Ollama to start.
	StartupTimeout = 30 * time.Second

	// ReadyPollInterval is the initial polling interval for WaitForReady.
	ReadyPollInterval = 100 * time.Millisecond

	// MaxReadyPollInterval caps exponential backoff.
	MaxReadyPollInterval = 2 * time.Second
)

// OllamaManager handles Ollama lifecycle operations.
type OllamaManager struct {
	host   string
	client *http.Client

	// Overridable in tests.
	execCommand func(name string, args ...string) *exec.Cmd
	lookPath    func(file string) (string, error)
	fileExists  func(path string) bool
}

// OllamaStatus is the state of the local server for one model.
type OllamaStatus struct {
	Host          string   `json:"host"`
	Installed     bool     `json:"installed"`
	InstalledPath string   `json:"installed_path,omitempty"`
	Running       bool     `json:"running"`
	Models        []string `json:"models,omitempty"`
	TargetModel   string   `json:"target_model"`
	HasModel      bool     `json:"has_model"`
}

// PullProgress is one line of the streaming pull response.
type PullProgress struct {
	Status    string
	Digest    string
	Total     int64
	Completed int64
	Percent   float64
}

// EnsureOpts configures EnsureReady.
type EnsureOpts struct {
	// AutoStart runs `ollama serve` when the server is down.
	AutoStart bool
	// AutoPull pulls a missing model.
	AutoPull bool
	// Progress receives pull progress updates.
	Progress func(PullProgress)
	// Log receives one-line status messages.
	Log func(msg string)
}

// NewOllamaManager creates a manager for host. An empty host uses the
// default local endpoint.
func NewOllamaManager(host string) *OllamaManager {
	if host == "" {
		host = embed.DefaultOllamaHost
	}
	return &OllamaManager{
		host:        strings.TrimRight(host, "/"),
		client:      &http.Client{Timeout: 5 * time.Second},
		execCommand: exec.Command,
		lookPath:    exec.LookPath,
		fileExists:  fileExists,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Host returns the configured Ollama host.
func (m *OllamaManager) Host() string {
	return m.host
}

// IsRemoteHost reports whether host is not this machine. A remote server
// cannot be started from here.
func (m *OllamaManager) IsRemoteHost() bool {
	return !strings.Contains(m.host, "localhost") && !strings.Contains(m.host, "127.0.0.1")
}

// IsInstalled looks for the ollama binary or app.
func (m *OllamaManager) IsInstalled() (bool, string) {
	if path, err := m.lookPath("ollama"); err == nil {
		return true, path
	}

	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			"/Applications/Ollama.app",
			filepath.Join(os.Getenv("HOME"), "Applications", "Ollama.app"),
		}
	case "linux":
		candidates = []string{
			"/usr/local/bin/ollama",
			"/usr/bin/ollama",
			filepath.Join(os.Getenv("HOME"), ".local", "bin", "ollama"),
		}
	}
	for _, p := range candidates {
		if m.fileExists(p) {
			return true, p
		}
	}
	return false, ""
}

// IsRunning reports whether the API answers.
func (m *OllamaManager) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the names of the pulled models.
func (m *OllamaManager) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	models := make([]string, len(result.Models))
	for i, model := range result.Models {
		models[i] = model.Name
	}
	return models, nil
}

// HasModel reports whether model, or any tag of it, is pulled. A model
// without a tag matches "name:latest" and every other tag.
func (m *OllamaManager) HasModel(ctx context.Context, model string) (bool, error) {
	models, err := m.ListModels(ctx)
	if err != nil {
		return false, err
	}
	return containsModel(models, model), nil
}

func containsModel(models []string, model string) bool {
	want := strings.ToLower(model)
	wantBase, _, _ := strings.Cut(want, ":")
	for _, available := range models {
		have := strings.ToLower(available)
		haveBase, _, _ := strings.Cut(have, ":")
		if have == want || haveBase == wantBase {
			return true
		}
	}
	return false
}

// Status gathers installation, server and model state.
func (m *OllamaManager) Status(ctx context.Context, targetModel string) (*OllamaStatus, error) {
	status := &OllamaStatus{Host: m.host, TargetModel: targetModel}
	status.Installed, status.InstalledPath = m.IsInstalled()
	status.Running = m.IsRunning(ctx)
	if !status.Running {
		return status, nil
	}

	models, err := m.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	status.Models = models
	status.HasModel = containsModel(models, targetModel)
	return status, nil
}

// Start launches `ollama serve` in the background, or opens the app on
// macOS. It returns once the process is started, not once it is ready.
func (m *OllamaManager) Start() error {
	installed, path := m.IsInstalled()
	if !installed {
		return &NotInstalledError{}
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" && strings.HasSuffix(path, ".app") {
		cmd = m.execCommand("open", "-a", "Ollama")
	} else {
		cmd = m.execCommand(path, "serve")
	}
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ollama: %w", err)
	}
	// Reap the child when it exits.
	go func() { _ = cmd.Wait() }()
	return nil
}

// WaitForReady polls with exponential backoff until the API answers or
// timeout elapses.
func (m *OllamaManager) WaitForReady(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = StartupTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := ReadyPollInterval
	for {
		if m.IsRunning(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for Ollama at %s: %w", m.host, ctx.Err())
		case <-time.After(interval):
		}
		interval = min(interval*2, MaxReadyPollInterval)
	}
}

// PullModel pulls model through the streaming API, reporting progress.
func (m *OllamaManager) PullModel(ctx context.Context, model string, progress func(PullProgress)) error {
	body, err := json.Marshal(map[string]any{"name": model, "stream": true})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.host+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Streaming: no client timeout, ctx bounds the pull.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("failed to start pull: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("pull failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var msg struct {
			Status    string `json:"status"`
			Digest    string `json:"digest"`
			Total     int64  `json:"total"`
			Completed int64  `json:"completed"`
			Error     string `json:"error"`
		}
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return fmt.Errorf("pull %s: %s", model, msg.Error)
		}
		if progress != nil {
			p := PullProgress{Status: msg.Status, Digest: msg.Digest, Total: msg.Total, Completed: msg.Completed}
			if msg.Total > 0 {
				p.Percent = float64(msg.Completed) / float64(msg.Total) * 100
			}
			progress(p)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading pull response: %w", err)
	}
	return nil
}

// EnsureReady makes sure the server is up and has model, starting and
// pulling as opts allow.
func (m *OllamaManager) EnsureReady(ctx context.Context, model string, opts EnsureOpts) error {
	logf := func(format string, args ...any) {
		if opts.Log != nil {
			opts.Log(fmt.Sprintf(format, args...))
		}
	}

	if !m.IsRunning(ctx) {
		if !opts.AutoStart || m.IsRemoteHost() {
			return &NotRunningError{Host: m.host}
		}
		logf("Ollama is not running, starting it")
		if err := m.Start(); err != nil {
			return err
		}
		if err := m.WaitForReady(ctx, StartupTimeout); err != nil {
			return err
		}
		logf("Ollama started")
	}

	has, err := m.HasModel(ctx, model)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	if !opts.AutoPull {
		return &ModelNotFoundError{Model: model}
	}

	logf("Pulling embedding model %s", model)
	if err := m.PullModel(ctx, model, opts.Progress); err != nil {
		return err
	}
	logf("Model %s ready", model)
	return nil
}

// NotInstalledError indicates Ollama is not installed.
type NotInstalledError struct{}

func (e *NotInstalledError) Error() string {
	return "ollama is not installed"
}

// NotRunningError indicates the server does not answer.
type NotRunningError struct {
	Host string
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("ollama is not running at %s", e.Host)
}

// ModelNotFoundError indicates the model is not pulled.
type ModelNotFoundError struct {
	Model string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %s not found", e.Model)
}

// InstallInstructions returns platform-specific install instructions.
func InstallInstructions() string {
	switch runtime.GOOS {
	case "darwin":
		return `Install Ollama for local embeddings:
  brew install ollama    (or download from https://ollama.com/download)
Then run: smarthr setup`
	case "linux":
		return `Install Ollama for local embeddings:
  curl -fsSL https://ollama.com/install.sh | sh
Then run: smarthr setup`
	default:
		return `Install Ollama for local embeddings from https://ollama.com/download
Then run: smarthr setup`
	}
}
