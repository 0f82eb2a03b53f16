package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditEventType names a search event. Each line of the log also carries the
// event rendered as a Mangle fact.
type AuditEventType string

const (
	AuditMapStart     AuditEventType = "map_start"     // -> map_event/4
	AuditMapDone      AuditEventType = "map_done"      // -> map_event/4
	AuditStateChange  AuditEventType = "state_change"  // -> search_state/4
	AuditPairAccepted AuditEventType = "pair_accepted" // -> rule_pair/5
	AuditPassEnd      AuditEventType = "pass_end"      // -> search_pass/5
	AuditBatchJob     AuditEventType = "batch_job"     // -> batch_job/5
)

// AuditEvent is one JSON line of the audit log.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`
	EventType  AuditEventType         `json:"event"`
	RunID      string                 `json:"run,omitempty"`
	Source     string                 `json:"source,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Pass       int                    `json:"pass"`
	Score      float64                `json:"score"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	MangleFact string                 `json:"mangle"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// AuditLogger writes audit events, optionally scoped to a run.
type AuditLogger struct {
	runID string
}

// InitAudit opens the audit log in the configured log directory. It is a
// no-op unless debug mode is on.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		return nil
	}

	optionsMu.RLock()
	dir := options.Dir
	optionsMu.RUnlock()

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(dir, fmt.Sprintf("%s_audit.log", date))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// AuditWithRun returns an audit logger that stamps events with runID.
func AuditWithRun(runID string) *AuditLogger {
	return &AuditLogger{runID: runID}
}

// Log writes an audit event.
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RunID == "" {
		event.RunID = a.runID
	}
	event.MangleFact = generateMangleFact(event)

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// StateChange records a search state transition.
func (a *AuditLogger) StateChange(from, to string, pass int) {
	a.Log(AuditEvent{EventType: AuditStateChange, Pass: pass, Message: from + "->" + to,
		Fields: map[string]interface{}{"from": from, "to": to}})
}

// PairAccepted records an accepted rule pair.
func (a *AuditLogger) PairAccepted(source, target string, pass int, score float64) {
	a.Log(AuditEvent{EventType: AuditPairAccepted, Source: source, Target: target, Pass: pass, Score: score})
}

// generateMangleFact renders an event as a Mangle fact string.
func generateMangleFact(e AuditEvent) string {
	switch e.EventType {
	case AuditStateChange:
		return fmt.Sprintf("search_state(%d, %q, %q, %d).", e.Timestamp, e.RunID, e.Message, e.Pass)
	case AuditPairAccepted:
		return fmt.Sprintf("rule_pair(%q, %q, %q, %d, %g).", e.RunID, quoteless(e.Source), quoteless(e.Target), e.Pass, e.Score)
	case AuditPassEnd:
		return fmt.Sprintf("search_pass(%d, %q, %d, %g, %q).", e.Timestamp, e.RunID, e.Pass, e.Score, e.Message)
	case AuditBatchJob:
		return fmt.Sprintf("batch_job(%d, %q, %q, %q, %g).", e.Timestamp, e.RunID, e.Source, e.Target, e.Score)
	default:
		return fmt.Sprintf("map_event(%d, /%s, %q, %g).", e.Timestamp, e.EventType, e.RunID, e.Score)
	}
}

func quoteless(s string) string {
	return strings.ReplaceAll(s, `"`, `'`)
}
