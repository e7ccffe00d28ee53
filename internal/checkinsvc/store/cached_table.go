package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

var errStaleRead = errors.New("table changed during read")

// CachedTable puts a redis read-through cache in front of GetAllValues so a
// busy dashboard does not spend the spreadsheet API quota. Any write drops
// the cached copy and bumps a generation counter; a read only fills the
// cache if no write landed while it was in flight. Cache failures fall
// through to the wrapped table.
type CachedTable struct {
	Table
	rdb    *redis.Client
	key    string
	genKey string
	ttl    time.Duration
}

func NewCachedTable(inner Table, rdb *redis.Client, key string, ttl time.Duration) *CachedTable {
	k := "checkin:values:" + key
	return &CachedTable{Table: inner, rdb: rdb, key: k, genKey: k + ":gen", ttl: ttl}
}

func (c *CachedTable) GetAllValues(ctx context.Context) ([][]string, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if err == nil {
		var rows [][]string
		if err := json.Unmarshal(raw, &rows); err == nil {
			return rows, nil
		}
		log.Warnf("dropping undecodable cache entry %s", c.key)
	} else if !errors.Is(err, redis.Nil) {
		log.Warnf("cache read %s failed: %v", c.key, err)
	}

	gen, genErr := c.generation(ctx, c.rdb)

	rows, err := c.Table.GetAllValues(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		log.Warnf("cache generation %s unavailable: %v", c.genKey, genErr)
		return rows, nil
	}

	b, err := json.Marshal(rows)
	if err != nil {
		return rows, nil
	}
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		now, err := c.generation(ctx, tx)
		if err != nil {
			return err
		}
		if now != gen {
			return errStaleRead
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key, b, c.ttl)
			return nil
		})
		return err
	}, c.genKey)
	switch {
	case err == nil, errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
	default:
		log.Warnf("cache write %s failed: %v", c.key, err)
	}
	return rows, nil
}

func (c *CachedTable) generation(ctx context.Context, cmd redis.Cmdable) (int64, error) {
	v, err := cmd.Get(ctx, c.genKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (c *CachedTable) AppendRow(ctx context.Context, row []string) error {
	defer c.invalidate(ctx)
	return c.Table.AppendRow(ctx, row)
}

func (c *CachedTable) SetHeader(ctx context.Context, header []string) error {
	defer c.invalidate(ctx)
	return c.Table.SetHeader(ctx, header)
}

func (c *CachedTable) EnsureWorksheet(ctx context.Context, header []string) error {
	defer c.invalidate(ctx)
	return c.Table.EnsureWorksheet(ctx, header)
}

func (c *CachedTable) invalidate(ctx context.Context) {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey)
		pipe.Del(ctx, c.key)
		return nil
	})
	if err != nil {
		log.Warnf("cache invalidate %s failed: %v", c.key, err)
	}
}

// Unwrap exposes the wrapped table.
func (c *CachedTable) Unwrap() Table { return c.Table }

// Uncached strips a cache wrapper so the caller reads the backing table.
func Uncached(t Table) Table {
	if c, ok := t.(*CachedTable); ok {
		return c.Unwrap()
	}
	return t
}

// SequencerOf returns the table's serial source, looking through a cache
// wrapper.
func SequencerOf(t Table) (Sequencer, bool) {
	s, ok := Uncached(t).(Sequencer)
	return s, ok
}
