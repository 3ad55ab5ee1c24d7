package transcribe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ModelSize selects the whisper model to load.
type ModelSize string

const (
	ModelTiny   ModelSize = "tiny"
	ModelBase   ModelSize = "base"
	ModelSmall  ModelSize = "small"
	ModelMedium ModelSize = "medium"
	ModelLarge  ModelSize = "large"
)

var modelFiles = map[ModelSize]string{
	ModelTiny:   "ggml-tiny.bin",
	ModelBase:   "ggml-base.bin",
	ModelSmall:  "ggml-small.bin",
	ModelMedium: "ggml-medium.bin",
	ModelLarge:  "ggml-large-v3.bin",
}

// Device selects where inference runs.
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCPU  Device = "cpu"
	DeviceGPU  Device = "gpu"
)

// WhisperConfig configures the local whisper.cpp engine.
type WhisperConfig struct {
	ModelSize ModelSize
	Device    Device
	ModelDir  string // defaults to ~/.localvoice/models
	BinPath   string // defaults to searching PATH and common locations
	Prompt    string // initial prompt biasing recognition, e.g. vocabulary hints
}

// Whisper runs the whisper.cpp CLI for offline transcription.
type Whisper struct {
	mu        sync.RWMutex
	modelPath string
	binPath   string
	device    Device
	prompt    string
}

// NewWhisper creates the engine. Missing binary or model is not an error
// here; Infer reports ReasonEngineUnavailable per attempt so the user can
// install the model and retry by re-activating.
func NewWhisper(cfg WhisperConfig) (*Whisper, error) {
	if cfg.ModelSize == "" {
		cfg.ModelSize = ModelBase
	}
	file, ok := modelFiles[cfg.ModelSize]
	if !ok {
		return nil, fmt.Errorf("invalid model size: %s", cfg.ModelSize)
	}
	if cfg.Device == "" {
		cfg.Device = DeviceAuto
	}

	dir := cfg.ModelDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, ".localvoice", "models")
	}

	bin := cfg.BinPath
	if bin == "" {
		bin = findWhisperBinary()
	}

	return &Whisper{
		modelPath: filepath.Join(dir, file),
		binPath:   bin,
		device:    cfg.Device,
		prompt:    cfg.Prompt,
	}, nil
}

// SetPrompt replaces the initial prompt. Called by the controller's
// reload hook alongside Reconfigure.
func (w *Whisper) SetPrompt(prompt string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prompt = prompt
}

// Reconfigure switches model size and device. Called by the controller's
// reload hook, which only fires while no session is active.
func (w *Whisper) Reconfigure(size ModelSize, device Device) error {
	file, ok := modelFiles[size]
	if !ok {
		return fmt.Errorf("invalid model size: %s", size)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.modelPath = filepath.Join(filepath.Dir(w.modelPath), file)
	if device != "" {
		w.device = device
	}
	return nil
}

// Ready reports whether both the binary and the model are present.
func (w *Whisper) Ready() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.binPath == "" {
		return false
	}
	_, err := os.Stat(w.modelPath)
	return err == nil
}

// Infer implements Engine by shelling out to whisper.cpp.
func (w *Whisper) Infer(samples []float32, sampleRate int, language string) (string, error) {
	w.mu.RLock()
	binPath, modelPath, device, prompt := w.binPath, w.modelPath, w.device, w.prompt
	w.mu.RUnlock()

	if binPath == "" {
		return "", &Error{Reason: ReasonEngineUnavailable, Err: fmt.Errorf("whisper.cpp binary not found")}
	}
	if _, err := os.Stat(modelPath); err != nil {
		return "", &Error{Reason: ReasonEngineUnavailable, Err: fmt.Errorf("model not downloaded: %s", modelPath)}
	}

	audioPath := filepath.Join(os.TempDir(), fmt.Sprintf("localvoice_%d.wav", time.Now().UnixNano()))
	if err := os.WriteFile(audioPath, encodeWAV(samples, sampleRate), 0644); err != nil {
		return "", &Error{Reason: ReasonEngineFailed, Err: fmt.Errorf("write audio file: %w", err)}
	}
	defer os.Remove(audioPath)

	cmd := exec.Command(binPath, whisperArgs(modelPath, audioPath, language, prompt, device)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &Error{Reason: ReasonEngineFailed, Err: fmt.Errorf("whisper.cpp: %w, stderr: %s", err, stderr.String())}
	}

	text, err := parseWhisperOutput(stdout.Bytes())
	if err != nil {
		// Older builds print plain text despite -oj.
		text = strings.TrimSpace(stdout.String())
	}
	if text == "" {
		return "", &Error{Reason: ReasonNoSpeech}
	}
	return text, nil
}

// whisperArgs assembles the CLI invocation for one inference.
func whisperArgs(modelPath, audioPath, language, prompt string, device Device) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-oj", // JSON on stdout
		"--no-prints",
	}
	if language != "" && language != "auto" {
		args = append(args, "-l", language)
	}
	if prompt != "" {
		args = append(args, "--prompt", prompt)
	}
	if device == DeviceCPU {
		args = append(args, "-ng") // disable GPU offload
	}
	return args
}

// whisperOutput mirrors the JSON whisper.cpp emits with -oj.
type whisperOutput struct {
	Transcription []struct {
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperOutput(data []byte) (string, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse whisper output: %w", err)
	}
	var sb strings.Builder
	for _, seg := range out.Transcription {
		sb.WriteString(seg.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

// findWhisperBinary searches PATH and common install locations.
// whisper-cli is the Homebrew name.
func findWhisperBinary() string {
	names := []string{"whisper-cli", "whisper-cpp", "whisper", "main"}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(home, ".local", "bin"),
		filepath.Join(home, "whisper.cpp"),
	}
	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
