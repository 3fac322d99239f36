package session

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator issues session ids and per-session attempt ids.
type IDGenerator struct {
	counter uint64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// NewSession returns a fresh random session id.
func (g *IDGenerator) NewSession() string {
	return uuid.NewString()
}

// Next returns the next attempt id within sessionId.
func (g *IDGenerator) Next(sessionId string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-req-%d", sessionId, n)
}
