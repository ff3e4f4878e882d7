package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type captureSink struct {
	mu      sync.Mutex
	records []LogRecord
}

func (s *captureSink) InsertOne(_ context.Context, document interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, document.(LogRecord))
	return &mongo.InsertOneResult{}, nil
}

func TestDBCoreTeesEntries(t *testing.T) {
	sink := &captureSink{}
	writer := NewDBLogWriter(sink, "go-letters")
	base, observed := observer.New(zapcore.InfoLevel)

	log := zap.New(NewDBCore(base, writer)).With(zap.String("document_id", "doc-1"))
	log.Info("document signed", zap.String("user_id", "alice"))
	log.Debug("dropped by level")
	writer.Close()

	assert.Equal(t, 1, observed.Len())
	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, "document signed", rec.Message)
	assert.Equal(t, "alice", rec.UserID)
	assert.Equal(t, "doc-1", rec.DocumentID)
	assert.Equal(t, 20, rec.LogLevelId)
	assert.Equal(t, "go-letters", rec.AppID)

	// Logging after Close is a no-op instead of a panic.
	log.Info("late")
}
