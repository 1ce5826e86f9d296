package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditEventType names an audit event. It is also the name constant used
// in the event's Mangle fact.
type AuditEventType string

const (
	// Snapshot events -> snapshot_event/4
	AuditSnapshotBuilt AuditEventType = "snapshot_built"

	// Access decisions -> atom_access/4
	AuditAtomDenied AuditEventType = "atom_denied"

	// Term store events -> term_op/5
	AuditTermsGenerated AuditEventType = "terms_generated"
	AuditWeightsUpdated AuditEventType = "weights_updated"
	AuditStaleTerm      AuditEventType = "stale_term"

	// Write-back -> store_commit/4
	AuditCommit AuditEventType = "commit"
)

// AuditEvent is one JSON line of the audit trail. MangleFact holds the same
// event as a Mangle fact so a trail can be loaded and queried.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"`      // Unix milliseconds
	EventType  AuditEventType `json:"event"`   // Maps to Mangle predicate
	Category   string         `json:"cat"`     // Log category
	Target     string         `json:"target"`  // Atom key, rule ID or partition
	Count      int            `json:"count"`   // Atoms, terms or rows involved
	Success    bool           `json:"success"` // Operation succeeded
	Error      string         `json:"error"`   // Error message if failed
	Message    string         `json:"msg"`     // Human-readable message
	MangleFact string         `json:"mangle"`  // Pre-formatted Mangle fact
}

var (
	auditOut    io.Writer
	auditCloser io.Closer
	auditMu     sync.Mutex
)

// AuditLogger writes audit events for one category.
type AuditLogger struct {
	category Category
}

// InitAudit opens path for appending audit events. An empty path disables
// the audit trail.
func InitAudit(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	closeAuditLocked()
	auditOut = file
	auditCloser = file
	return nil
}

// InitAuditWriter sends audit events to w. Tests use this with a buffer.
func InitAuditWriter(w io.Writer) {
	auditMu.Lock()
	defer auditMu.Unlock()
	closeAuditLocked()
	auditOut = w
}

// CloseAudit closes the audit log and disables the trail.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	closeAuditLocked()
}

func closeAuditLocked() {
	if auditCloser != nil {
		auditCloser.Close()
	}
	auditOut = nil
	auditCloser = nil
}

// Audit returns an audit logger scoped to category.
func Audit(category Category) *AuditLogger {
	return &AuditLogger{category: category}
}

// Log stamps event and appends it to the trail. It is a no-op while the
// trail is disabled.
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditOut == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.Category == "" {
		event.Category = string(a.category)
	}

	event.MangleFact = generateMangleFact(event)

	line, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, _ = auditOut.Write(append(line, '\n'))
}

func generateMangleFact(e AuditEvent) string {
	switch e.EventType {
	case AuditSnapshotBuilt:
		return fmt.Sprintf("snapshot_event(%d, /%s, %d, /%v).",
			e.Timestamp, e.EventType, e.Count, e.Success)
	case AuditAtomDenied:
		return fmt.Sprintf("atom_access(%d, /%s, \"%s\", /%v).",
			e.Timestamp, e.EventType, escapeString(e.Target), e.Success)
	case AuditTermsGenerated, AuditWeightsUpdated, AuditStaleTerm:
		return fmt.Sprintf("term_op(%d, /%s, \"%s\", %d, /%v).",
			e.Timestamp, e.EventType, escapeString(e.Target), e.Count, e.Success)
	case AuditCommit:
		return fmt.Sprintf("store_commit(%d, \"%s\", %d, /%v).",
			e.Timestamp, escapeString(e.Target), e.Count, e.Success)
	default:
		return fmt.Sprintf("audit_event(%d, /%s, \"%s\", \"%s\", /%v).",
			e.Timestamp, e.EventType, e.Category, escapeString(e.Message), e.Success)
	}
}

var mangleEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// escapeString quotes s for use inside a Mangle string literal.
func escapeString(s string) string {
	return mangleEscaper.Replace(s)
}

// SnapshotBuilt logs the size of a completed snapshot
func (a *AuditLogger) SnapshotBuilt(atoms int) {
	a.Log(AuditEvent{
		EventType: AuditSnapshotBuilt,
		Count:     atoms,
		Success:   true,
		Message:   fmt.Sprintf("Snapshot built: %d random-variable atoms", atoms),
	})
}

// AtomDenied logs a refused random-variable lookup
func (a *AuditLogger) AtomDenied(key string) {
	a.Log(AuditEvent{
		EventType: AuditAtomDenied,
		Target:    key,
		Success:   false,
		Message:   fmt.Sprintf("Access denied: %s is not in the snapshot", key),
	})
}

// TermsGenerated logs a generation pass
func (a *AuditLogger) TermsGenerated(terms, groundRules int) {
	a.Log(AuditEvent{
		EventType: AuditTermsGenerated,
		Count:     terms,
		Success:   true,
		Message:   fmt.Sprintf("Generated %d terms from %d ground rules", terms, groundRules),
	})
}

// WeightsUpdated logs a weight update pass
func (a *AuditLogger) WeightsUpdated(terms int) {
	a.Log(AuditEvent{
		EventType: AuditWeightsUpdated,
		Count:     terms,
		Success:   true,
		Message:   fmt.Sprintf("Updated %d term weights", terms),
	})
}

// StaleTerm logs a weight update aborted by a missing ground rule
func (a *AuditLogger) StaleTerm(ruleID string) {
	a.Log(AuditEvent{
		EventType: AuditStaleTerm,
		Target:    ruleID,
		Success:   false,
		Error:     "ground rule no longer stored",
		Message:   fmt.Sprintf("Stale term reference: %s", ruleID),
	})
}

// Committed logs values written back to a partition
func (a *AuditLogger) Committed(partition string, atoms int, err error) {
	event := AuditEvent{
		EventType: AuditCommit,
		Target:    partition,
		Count:     atoms,
		Success:   err == nil,
		Message:   fmt.Sprintf("Committed %d atoms to %s", atoms, partition),
	}
	if err != nil {
		event.Error = err.Error()
	}
	a.Log(event)
}
