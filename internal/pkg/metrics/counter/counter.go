package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tailorcv/tailorcv/internal/pkg/cache"
	"github.com/tailorcv/tailorcv/internal/pkg/database"
)

const (
	rewriteCountKey     = "resume:counters:rewrites"
	billingSwallowedKey = "billing:counters:swallowed"
)

// AddRewrite increments the pending rewrite counter for a resume in Redis
func AddRewrite(resumeID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(resumeID), 10)
	return cache.GetClient().HIncrBy(ctx, rewriteCountKey, field, 1).Err()
}

// AddBillingSwallowed increments the counter for a swallowed webhook error
// class. These counters are the monitoring hook for the acknowledge-and-drop
// policy: a sustained non-zero rate on a class means accounts are silently
// not reconciling.
func AddBillingSwallowed(class string) {
	ctx := context.Background()
	cache.GetClient().HIncrBy(ctx, billingSwallowedKey, class, 1)
}

// BillingSwallowedTotals returns the per-class swallowed-error counters.
func BillingSwallowedTotals() (map[string]int64, error) {
	ctx := context.Background()
	data, err := cache.GetClient().HGetAll(ctx, billingSwallowedKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for class, raw := range data {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out[class] = n
	}
	return out, nil
}

// FlushAll flushes pending rewrite counters to the database
func FlushAll() error {
	return flushHashToTable(rewriteCountKey, "resumes", "rewrite_count")
}

// flushHashToTable drains a Redis hash atomically and applies batched increments to the table.
// Uses RENAME to a temporary key for atomic drain without losing in-flight increments.
func flushHashToTable(redisKey, table, column string) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	// Atomically move the hash to a temp key for draining
	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		// Some Redis libs return redis.Nil; treat as empty
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	// Build batched UPDATE using CASE WHEN id THEN inc
	// Collect ids and increments; also sort ids for stable SQL
	type pair struct {
		id  uint64
		inc int64
	}
	pairs := make([]pair, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pair{id: id, inc: inc})
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	// Compose SQL
	// UPDATE resumes SET <column> = <column> + CASE id WHEN ? THEN ? ... END WHERE id IN ( ... )
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*2+len(pairs))
	builder.WriteString("UPDATE ")
	builder.WriteString(table)
	builder.WriteString(" SET ")
	builder.WriteString(column)
	builder.WriteString(" = ")
	builder.WriteString(column)
	builder.WriteString(" + CASE id ")
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.id)
	}
	builder.WriteString(")")

	sql := builder.String()
	db := database.GetDB()
	if err := db.Exec(sql, args...).Error; err != nil {
		return err
	}
	return nil
}
