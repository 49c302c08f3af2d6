// Package redis implements the persistence gateway on Redis with JSON
// serialization and TTL-bounded keys.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/audiostudio/conductor/pkg/domain"
	"github.com/audiostudio/conductor/pkg/ports"
)

const (
	workflowKeyPrefix  = "conductor:workflow:"
	executionKeyPrefix = "conductor:execution:"
	audioKeyPrefix     = "conductor:audio:"
	logListPrefix      = "conductor:logs:"
	resultListPrefix   = "conductor:results:"
)

// Gateway is a Redis-backed ports.Persistence implementation.
type Gateway struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

var _ ports.Persistence = (*Gateway)(nil)

// NewGateway creates a Redis persistence gateway. Values expire after
// ttl; zero means no expiry.
func NewGateway(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Gateway {
	return &Gateway{client: client, ttl: ttl, logger: logger}
}

type executionRow struct {
	ID           string    `json:"id"`
	WorkflowID   string    `json:"workflowId"`
	AudioFileID  string    `json:"audioFileId,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	CompletedAt  time.Time `json:"completedAt,omitempty"`
}

func (g *Gateway) SaveWorkflow(ctx context.Context, pipeline domain.Pipeline) (string, error) {
	id := pipeline.ID
	if id == "" {
		id = uuid.NewString()
		pipeline.ID = id
	}
	if err := g.setJSON(ctx, workflowKeyPrefix+id, pipeline); err != nil {
		return "", fmt.Errorf("failed to save workflow: %w", err)
	}
	return id, nil
}

func (g *Gateway) UpdateWorkflow(ctx context.Context, id string, pipeline domain.Pipeline) error {
	exists, err := g.client.Exists(ctx, workflowKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to check workflow: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("workflow not found: %s", id)
	}
	if err := g.setJSON(ctx, workflowKeyPrefix+id, pipeline); err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	return nil
}

func (g *Gateway) GetWorkflow(ctx context.Context, id string) (*domain.Pipeline, error) {
	data, err := g.client.Get(ctx, workflowKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	var pipeline domain.Pipeline
	if err := json.Unmarshal(data, &pipeline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	return &pipeline, nil
}

func (g *Gateway) ListWorkflows(ctx context.Context) ([]domain.Pipeline, error) {
	var cursor uint64
	var keys []string
	for {
		batch, next, err := g.client.Scan(ctx, cursor, workflowKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflows: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	out := make([]domain.Pipeline, 0, len(keys))
	for _, key := range keys {
		data, err := g.client.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("failed to get workflow %s: %w", key, err)
		}
		var pipeline domain.Pipeline
		if err := json.Unmarshal(data, &pipeline); err != nil {
			g.logger.Warn("skipping undecodable workflow", zap.String("key", key), zap.Error(err))
			continue
		}
		out = append(out, pipeline)
	}
	return out, nil
}

func (g *Gateway) StartExecution(ctx context.Context, workflowID, audioFileID string, metadata map[string]interface{}) (string, error) {
	row := executionRow{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		AudioFileID: audioFileID,
		Status:      "running",
		StartedAt:   time.Now().UTC(),
	}
	if err := g.setJSON(ctx, executionKeyPrefix+row.ID, row); err != nil {
		return "", fmt.Errorf("failed to save execution: %w", err)
	}
	return row.ID, nil
}

func (g *Gateway) CompleteExecution(ctx context.Context, executionID, status, errorMessage string) error {
	data, err := g.client.Get(ctx, executionKeyPrefix+executionID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("execution not found: %s", executionID)
		}
		return fmt.Errorf("failed to get execution: %w", err)
	}
	var row executionRow
	if err := json.Unmarshal(data, &row); err != nil {
		return fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	row.Status = status
	row.ErrorMessage = errorMessage
	row.CompletedAt = time.Now().UTC()
	if err := g.setJSON(ctx, executionKeyPrefix+executionID, row); err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	return nil
}

func (g *Gateway) SaveAudioFileMetadata(ctx context.Context, meta ports.AudioFileMetadata) (string, error) {
	id := uuid.NewString()
	if err := g.setJSON(ctx, audioKeyPrefix+id, meta); err != nil {
		return "", fmt.Errorf("failed to save audio metadata: %w", err)
	}
	return id, nil
}

func (g *Gateway) SaveLog(ctx context.Context, record ports.LogRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}
	key := logListPrefix + record.WorkflowID
	if err := g.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	g.expire(ctx, key)
	return nil
}

func (g *Gateway) SaveResult(ctx context.Context, record ports.ResultRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	key := resultListPrefix + record.WorkflowID
	if err := g.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append result: %w", err)
	}
	g.expire(ctx, key)
	return nil
}

func (g *Gateway) setJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return g.client.Set(ctx, key, data, g.ttl).Err()
}

func (g *Gateway) expire(ctx context.Context, key string) {
	if g.ttl <= 0 {
		return
	}
	if err := g.client.Expire(ctx, key, g.ttl).Err(); err != nil {
		g.logger.Warn("failed to set TTL", zap.String("key", key), zap.Error(err))
	}
}
