package queue

import (
	"fmt"
	"strings"
)

// BatchMessage is the broker payload for one queued batch. It deliberately
// carries only the batch id: the executor always re-reads current state
// before acting, so stale snapshots cannot leak through the queue.
type BatchMessage struct {
	BatchID       string `json:"batchId"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (m BatchMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	return nil
}
