// 包 utils：外部依赖（Postgres、Redis、内存探测）的打开与探测工具
package utils

import (
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"

	"tile-splitter/internal/logger"
)

// OpenRedisFromEnv：由 REDIS_HOST / REDIS_PORT / REDIS_PASS / REDIS_DB 打开客户端
// 约束：REDIS_DB 解析失败时回退到 0
func OpenRedisFromEnv() *redis.Client {
	addr := envOr("REDIS_HOST", "127.0.0.1") + ":" + envOr("REDIS_PORT", "6379")
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, _ := strconv.Atoi(v); n >= 0 {
			db = n
		}
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db})
}
