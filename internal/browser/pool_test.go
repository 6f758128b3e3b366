package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewAppliesSessionDefault(t *testing.T) {
	t.Parallel()

	p := New(Config{}, zap.NewNop())
	assert.Equal(t, 4, cap(p.sem))

	p = New(Config{MaxSessions: 2}, zap.NewNop())
	assert.Equal(t, 2, cap(p.sem))
}

func TestStopBeforeStartIsSafe(t *testing.T) {
	t.Parallel()

	p := New(Config{}, zap.NewNop())
	p.Stop()
	p.Stop()
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	released := 0
	_, cancel := context.WithCancel(context.Background())
	s := &Session{
		cancel:  cancel,
		release: func() { released++ },
	}

	s.Close()
	s.Close()
	assert.Equal(t, 1, released, "double close must release the slot once")
}
