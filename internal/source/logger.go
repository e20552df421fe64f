package source

import (
	"log"
	"time"
)

// LogRequest logs an outbound source request.
func LogRequest(name, operation string, params map[string]interface{}) {
	if len(params) > 0 {
		log.Printf("[%s] %s params=%v", name, operation, params)
	} else {
		log.Printf("[%s] %s", name, operation)
	}
}

// LogResponse logs a source response.
func LogResponse(name string, duration time.Duration, resultCount int) {
	log.Printf("[%s] response duration=%dms results=%d",
		name, duration.Milliseconds(), resultCount)
}

// LogError logs an error from a source operation.
func LogError(name, operation string, err error) {
	log.Printf("[%s] %s error: %v", name, operation, err)
}

// LogUpsert logs database batch writes.
func LogUpsert(name string, count int, duration time.Duration) {
	log.Printf("[%s] upserted %d rows in %dms",
		name, count, duration.Milliseconds())
}
