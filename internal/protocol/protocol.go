// internal/protocol/protocol.go
package protocol

import (
	"context"
	"time"

	"ecf-service/internal/model"
)

// Transport is a byte oriented duplex channel to one device. It never
// retries and never interprets the bytes it moves.
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data communication. Read returns an empty slice when the per read
	// timeout elapses without data.
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// Protocol information
	GetProtocolType() model.ConnectionType
	Stats() ProtocolStats
}

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	EmptyReads     int64         `json:"empty_reads"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

func (s *ProtocolStats) recordWrite(n int, d time.Duration) {
	s.BytesWritten += int64(n)
	s.OperationCount++
	s.LastActivity = time.Now()
	if s.AverageLatency == 0 {
		s.AverageLatency = d
	} else {
		s.AverageLatency = (s.AverageLatency + d) / 2
	}
}

func (s *ProtocolStats) recordRead(n int) {
	if n == 0 {
		s.EmptyReads++
		return
	}
	s.BytesRead += int64(n)
	s.OperationCount++
	s.LastActivity = time.Now()
}
