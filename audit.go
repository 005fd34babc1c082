package goGate

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goGate/internal/audit"
)

// AuditEvent is one session lifecycle event. It never carries tokens or session ids.
type AuditEvent = audit.Event

// AuditStats reports what the audit dispatcher has relayed.
type AuditStats = audit.Stats

// Audit event types.
const (
	AuditEventLogin          = audit.EventLogin
	AuditEventLogout         = audit.EventLogout
	AuditEventRefreshSuccess = audit.EventRefreshSuccess
	AuditEventRefreshFailure = audit.EventRefreshFailure
	AuditEventSessionCleared = audit.EventSessionCleared
)

// AuditSink receives audit events from the Gate's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink writes audit events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink writes audit events as structured log records.
type SlogSink = audit.SlogSink

// NewChannelSink returns a sink backed by a channel of the given capacity.
func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

// NewJSONWriterSink returns a sink that writes JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

// NewSlogSink returns a sink that logs through logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink { return audit.NewSlogSink(logger) }
