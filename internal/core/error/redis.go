package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// RedisErrorMessage describes Redis related failures.
const RedisErrorMessage = "conversation store unavailable"

// WrapRedis maps Redis errors to AppError. redis.Nil is not a failure for
// list reads and is returned as nil.
func WrapRedis(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	return New(KindInternal, err, http.StatusServiceUnavailable, RedisErrorMessage)
}
