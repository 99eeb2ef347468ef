// Package statecache mirrors the live robot register into Redis so other
// processes can read fleet state without going through the HTTP API. The
// register stays the source of truth; the cache is rebuilt from scratch on
// every start.
package statecache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"robottracker/register"
)

type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client. Keys are namespaced under prefix
// ("robottracker" if empty).
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "robottracker"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) robotKey(robotID string) string {
	return fmt.Sprintf("%s:robot:%s", r.prefix, robotID)
}

func (r *RedisStore) allRobotsKey() string {
	return r.prefix + ":robots"
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// PutRobot writes one robot's state and adds it to the robot set.
func (r *RedisStore) PutRobot(ctx context.Context, state register.RobotState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.robotKey(state.RobotID), data, 0)
	pipe.SAdd(ctx, r.allRobotsKey(), state.RobotID)
	_, err = pipe.Exec(ctx)
	return err
}

// GetRobot returns nil, nil when the robot is not cached.
func (r *RedisStore) GetRobot(ctx context.Context, robotID string) (*register.RobotState, error) {
	data, err := r.client.Get(ctx, r.robotKey(robotID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state register.RobotState
	return &state, json.Unmarshal(data, &state)
}

func (r *RedisStore) GetAllRobotIDs(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, r.allRobotsKey()).Result()
}

func (r *RedisStore) RemoveRobot(ctx context.Context, robotID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.robotKey(robotID))
	pipe.SRem(ctx, r.allRobotsKey(), robotID)
	_, err := pipe.Exec(ctx)
	return err
}

// FlushAll removes every cached robot.
func (r *RedisStore) FlushAll(ctx context.Context) error {
	ids, err := r.GetAllRobotIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		r.RemoveRobot(ctx, id)
	}
	return r.client.Del(ctx, r.allRobotsKey()).Err()
}
