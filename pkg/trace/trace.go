// Package trace implements the append-only, hash-chained JSONL record of a
// contract checking run.
package trace

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/contractnet/pkg/contract"
	"github.com/ormasoftchile/contractnet/pkg/monitor"
)

// EventType enumerates all trace event types.
type EventType string

const (
	EventRunStart           EventType = "run_start"
	EventCompositionWarning EventType = "composition_warning"
	EventSimulationError    EventType = "simulation_error"
	EventContractViolation  EventType = "contract_violation"
	EventRunComplete        EventType = "run_complete"
)

// Run statuses recorded in run_complete.
const (
	StatusClean    = "clean"
	StatusViolated = "violated"
	StatusError    = "error"
)

// SigningKeyEnv names the variable holding the HMAC key used to sign and
// verify the chain hash.
const SigningKeyEnv = "CONTRACTNET_TRACE_SIGNING_KEY"

var genesis = strings.Repeat("0", 64)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	PrevHash  string         `json:"prev_hash"`
	Data      map[string]any `json:"data,omitempty"`
}

// Writer writes trace events to an append-only JSONL stream. Every event
// carries the SHA-256 of the previous line; the first carries 64 zeros.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	runID  string
	prev   string
	keyID  string
	key    []byte
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// NewWriter creates a trace writer that writes to w.
func NewWriter(w io.Writer, runID string) *Writer {
	return &Writer{w: w, runID: runID, prev: genesis}
}

// NewFileWriter creates a trace writer for a JSONL file. An existing file is
// truncated; one file holds one chain.
func NewFileWriter(path, runID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f, runID)
	tw.closer = f
	return tw, nil
}

// RunID returns the writer's run identifier.
func (tw *Writer) RunID() string { return tw.runID }

// SetSigningKey makes run_complete carry an HMAC-SHA256 signature of the
// chain hash.
func (tw *Writer) SetSigningKey(keyID string, key []byte) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.keyID, tw.key = keyID, key
}

// Close closes the underlying file, if the writer opened one.
func (tw *Writer) Close() error {
	if tw.closer == nil {
		return nil
	}
	return tw.closer.Close()
}

// Emit writes a single trace event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.emitLocked(eventType, data)
}

func (tw *Writer) emitLocked(eventType EventType, data map[string]any) error {
	line, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     tw.runID,
		PrevHash:  tw.prev,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	if _, err := tw.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	h := sha256.Sum256(line)
	tw.prev = hex.EncodeToString(h[:])
	return nil
}

// EmitRunStart emits a run_start event.
func (tw *Writer) EmitRunStart(system string, span [2]float64, step float64, method string, params map[string]float64) error {
	data := map[string]any{
		"system": system,
		"tspan":  span,
		"dt":     step,
		"method": method,
	}
	if len(params) > 0 {
		data["params"] = params
	}
	return tw.Emit(EventRunStart, data)
}

// EmitCompositionWarning emits a composition_warning event. path locates
// the network the wire belongs to ("" for the top level).
func (tw *Writer) EmitCompositionWarning(path string, w contract.UndefinedWarning) error {
	return tw.Emit(EventCompositionWarning, map[string]any{
		"path":    path,
		"source":  w.Wire.SourceName,
		"target":  w.Wire.TargetName,
		"port":    w.Wire.Port,
		"emits":   w.Source.String(),
		"accepts": w.Target.String(),
		"overlap": w.Overlap.String(),
	})
}

// EmitSimulationError emits a simulation_error event.
func (tw *Writer) EmitSimulationError(err error) error {
	return tw.Emit(EventSimulationError, map[string]any{"error": err.Error()})
}

// EmitContractViolation emits a contract_violation event for one failing
// range.
func (tw *Writer) EmitContractViolation(v monitor.Violation) error {
	return tw.Emit(EventContractViolation, map[string]any{
		"path":      v.Path,
		"direction": string(v.Direction),
		"port":      v.Port,
		"first":     v.Range.First,
		"last":      v.Range.Last,
		"start":     v.Range.Start,
		"end":       v.Range.End,
	})
}

// EmitRunComplete emits run_complete carrying the chain hash, and its
// signature when a signing key is set.
func (tw *Writer) EmitRunComplete(status string, violations int, duration time.Duration) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	data := map[string]any{
		"status":     status,
		"violations": violations,
		"duration":   duration.String(),
		"chain_hash": tw.prev,
	}
	if len(tw.key) > 0 {
		data["signature"] = sign(tw.key, tw.prev)
		data["signing_key_id"] = tw.keyID
	}
	return tw.emitLocked(EventRunComplete, data)
}

func sign(key []byte, chainHash string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(chainHash))
	return hex.EncodeToString(mac.Sum(nil))
}
