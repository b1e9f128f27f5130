package testing

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"
)

const redisImageTag = "6.2"

// RedisContainer is a throwaway redis running in docker, removed in test cleanup
type RedisContainer struct {
	Host     string
	Port     string
	Password string
	Client   *redis.Client
}

func (rc *RedisContainer) Addr() string {
	return net.JoinHostPort(rc.Host, rc.Port)
}

// StartRedis runs redis in docker and returns a pinged client for it.
// REDIS_PASS, when set, is required by the started server.
func StartRedis(t *testing.T) *RedisContainer {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "could not create new dockertest pool")
	require.NoError(t, pool.Client.Ping(), "could not ping docker")
	pool.MaxWait = 30 * time.Second

	redisPass := os.Getenv("REDIS_PASS")
	runOptions := &dockertest.RunOptions{
		Repository: "redis",
		Tag:        redisImageTag,
	}
	if redisPass != "" {
		runOptions.Cmd = []string{"redis-server", "--requirepass", redisPass}
	}

	resource, err := pool.RunWithOptions(runOptions, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "run redis")

	rc := &RedisContainer{
		Host:     "localhost",
		Port:     resource.GetPort("6379/tcp"),
		Password: redisPass,
	}

	err = pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr(),
			Password: redisPass,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return err
		}
		rc.Client = client
		return nil
	})
	require.NoError(t, err, "redis never became ready")
	t.Logf("redis ready on %s", rc.Addr())

	t.Cleanup(func() {
		if rc.Client != nil {
			_ = rc.Client.Close()
		}
		if err := pool.Purge(resource); err != nil {
			t.Logf("redis teardown: %s", err)
		}
	})

	return rc
}
