package eventchain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type (
	// Archiver receives every batch of events removed by RemoveAll
	Archiver interface {
		Archive(context.Context, EventType, []Event) error
	}

	// ArchiverFunc adapts a function to the Archiver interface
	ArchiverFunc func(context.Context, EventType, []Event) error

	// RedisArchiver appends removed batches to a Redis stream
	RedisArchiver struct {
		client *redis.Client
		prefix string
	}

	RedisArchiverConfig struct {
		Addr     string
		Password string
		Prefix   string
		DB       int
	}

	// ArchiveRecord is one removed batch read back from the stream
	ArchiveRecord struct {
		StreamID string
		Type     EventType
		Events   []Event
	}

	archivePayload struct {
		Type   EventType `json:"type"`
		Events []Event   `json:"events"`
	}
)

const (
	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisPrefix   = "eventchain"
	RedisConnectTimeout  = 5 * time.Second

	archiveSuffix = ":archive"
	payloadField  = "payload"
)

// ErrArchiveRecordMalformed indicates an archive record was malformed
var ErrArchiveRecordMalformed = errors.New("archive record malformed")

func (f ArchiverFunc) Archive(
	ctx context.Context, typ EventType, evs []Event,
) error {
	return f(ctx, typ, evs)
}

func DefaultRedisArchiverConfig() RedisArchiverConfig {
	return RedisArchiverConfig{
		Addr:   DefaultRedisEndpoint,
		Prefix: DefaultRedisPrefix,
	}
}

// NewRedisArchiver connects to Redis and verifies the connection
func NewRedisArchiver(
	ctx context.Context, cfg RedisArchiverConfig,
) (*RedisArchiver, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, RedisConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisArchiver{
		client: client,
		prefix: cfg.Prefix,
	}, nil
}

// Archive appends one stream entry holding the whole batch
func (a *RedisArchiver) Archive(
	ctx context.Context, typ EventType, evs []Event,
) error {
	if len(evs) == 0 {
		return nil
	}

	data, err := json.Marshal(archivePayload{Type: typ, Events: evs})
	if err != nil {
		return err
	}

	return a.client.XAdd(ctx, &redis.XAddArgs{
		Stream: a.streamKey(),
		Values: map[string]any{payloadField: string(data)},
	}).Err()
}

// Records reads every archived batch, oldest first
func (a *RedisArchiver) Records(ctx context.Context) ([]*ArchiveRecord, error) {
	msgs, err := a.client.XRange(ctx, a.streamKey(), "-", "+").Result()
	if err != nil {
		return nil, err
	}

	res := make([]*ArchiveRecord, 0, len(msgs))
	for _, msg := range msgs {
		rec, err := parseArchiveRecord(msg)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, nil
}

func (a *RedisArchiver) Close() error {
	return a.client.Close()
}

func (a *RedisArchiver) streamKey() string {
	return a.prefix + archiveSuffix
}

func parseArchiveRecord(msg redis.XMessage) (*ArchiveRecord, error) {
	raw, ok := msg.Values[payloadField]
	if !ok {
		return nil, ErrArchiveRecordMalformed
	}

	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, ErrArchiveRecordMalformed
	}

	var payload archivePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	return &ArchiveRecord{
		StreamID: msg.ID,
		Type:     payload.Type,
		Events:   payload.Events,
	}, nil
}
