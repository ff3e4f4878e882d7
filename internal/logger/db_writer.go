package logger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap/zapcore"
)

// LogEntry holds the data passed from Zap to our worker
type LogEntry struct {
	Level      zapcore.Level
	Message    string
	Caller     string
	UserID     string
	DocumentID string
	Fields     map[string]any
	Time       time.Time
}

// LogRecord is the persisted shape of a log line
type LogRecord struct {
	AppID        string         `bson:"app_id"`
	Message      string         `bson:"message"`
	LogLevelId   int            `bson:"log_level_id"`
	Caller       string         `bson:"caller,omitempty"`
	UserID       string         `bson:"user_id,omitempty"`
	DocumentID   string         `bson:"document_id,omitempty"`
	Fields       map[string]any `bson:"fields,omitempty"`
	CreatedOnUtc time.Time      `bson:"created_on_utc"`
}

// Inserter is the subset of *mongo.Collection the writer needs
type Inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	sink    Inserter
	logChan chan LogEntry
	appId   string
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
}

// NewDBLogWriter starts the background worker immediately
func NewDBLogWriter(sink Inserter, appId string) *DBLogWriter {
	writer := &DBLogWriter{
		sink:    sink,
		logChan: make(chan LogEntry, 1000),
		appId:   appId,
		done:    make(chan struct{}),
	}

	go writer.processLogs()

	return writer
}

// AddLog is called by our Zap core; it never blocks the caller
func (w *DBLogWriter) AddLog(entry LogEntry) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.logChan <- entry:
	default:
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

// Close drains pending entries and stops the worker
func (w *DBLogWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.logChan)
	w.mu.Unlock()
	<-w.done
}

func (w *DBLogWriter) processLogs() {
	defer close(w.done)
	for entry := range w.logChan {
		createdAt := entry.Time
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		record := LogRecord{
			AppID:        w.appId,
			Message:      entry.Message,
			LogLevelId:   mapLevelToInt(entry.Level),
			Caller:       entry.Caller,
			UserID:       entry.UserID,
			DocumentID:   entry.DocumentID,
			Fields:       entry.Fields,
			CreatedOnUtc: createdAt.UTC(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		// Errors are ignored to keep the app running
		_, _ = w.sink.InsertOne(ctx, record)
		cancel()
	}
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}
