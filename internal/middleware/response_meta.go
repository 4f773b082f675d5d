package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	requestStartKey = "request_start"
)

// WithResponseMeta stamps the request start and prepares the meta block that
// read-model handlers return alongside their data.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether the read model was served from the cache, in
// meta and in the X-Cache header.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)["cache_hit"] = hit
	if hit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
}

// ResponseMeta returns the meta block with processing_time_ms measured from
// the request start. fallback is used when WithResponseMeta did not run.
func ResponseMeta(c *gin.Context, fallback time.Time) map[string]interface{} {
	meta := ensureMeta(c)
	start := fallback
	if v, ok := c.Get(requestStartKey); ok {
		if t, ok := v.(time.Time); ok {
			start = t
		}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta, ok := c.Get(responseMetaKey); ok {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
