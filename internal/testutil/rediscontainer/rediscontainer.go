// Package rediscontainer manages the throwaway Redis instance backing the
// redis store integration tests.
package rediscontainer

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/EgejuruProsper/alx-polly-sub001/internal/testutil/dockertest"
)

const hostPort = "6390"

var container = dockertest.Container{
	Dockerfile: "Dockerfile.redis.test",
	Image:      "alx-polly-redis-test",
	Name:       "alx-polly-redis-test",
	HostPort:   hostPort,
	GuestPort:  "6379",
}

var (
	once     sync.Once
	setupErr error
)

// Addr exposes the Redis host:port combination used by integration tests.
func Addr() string { return "127.0.0.1:" + hostPort }

// Setup builds the Redis test image, runs the container, and waits until it
// answers RESP PING/PONG exchanges.
func Setup() error {
	once.Do(func() {
		if setupErr = container.Start(); setupErr != nil {
			return
		}
		setupErr = waitForRedis(Addr(), 5*time.Second)
	})
	return setupErr
}

// Teardown stops the Redis container. A later Setup relaunches it.
func Teardown() error {
	if setupErr != nil {
		return setupErr
	}
	if err := container.Stop(); err != nil {
		return err
	}
	once = sync.Once{}
	return nil
}

func waitForRedis(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	payload := []byte("*1\r\n$4\r\nPING\r\n")
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			if _, err := conn.Write(payload); err == nil {
				_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
				line, err := bufio.NewReader(conn).ReadString('\n')
				if err == nil && strings.Contains(line, "PONG") {
					_ = conn.Close()
					return nil
				}
			}
			_ = conn.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("redis container did not respond to ping")
}
