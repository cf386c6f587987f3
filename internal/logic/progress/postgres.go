package progress

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"geyser-stream-sol/internal/logic/core"
	"geyser-stream-sol/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mr-tron/base58"
)

// 依次执行，单条语句便于定位失败位置
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS program_events (
		signature     TEXT        NOT NULL,
		event_id      BIGINT      NOT NULL,
		slot          BIGINT      NOT NULL,
		tx_index      INTEGER     NOT NULL,
		kind          TEXT        NOT NULL,
		dex           SMALLINT    NOT NULL,
		source        SMALLINT    NOT NULL,
		discriminator BYTEA       NOT NULL,
		event_key     TEXT        NOT NULL,
		frame         BYTEA       NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (signature, event_id)
	)`,
	`CREATE INDEX IF NOT EXISTS program_events_slot_idx ON program_events (slot)`,
	`CREATE INDEX IF NOT EXISTS program_events_key_idx ON program_events (event_key, slot)`,
	`CREATE TABLE IF NOT EXISTS progress_slot (
		slot       BIGINT      PRIMARY KEY,
		status     SMALLINT    NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// NewPostgresPool 创建连接池并 ping 校验
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// PostgresStore 事件与 slot 进度落库。
// 事件按 (signature, event_id) 幂等写入，重复推送的交易不会产生重复行
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema 建表（IF NOT EXISTS）
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const insertEventSQL = `
	INSERT INTO program_events (
		signature, event_id, slot, tx_index, kind, dex, source, discriminator, event_key, frame
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (signature, event_id) DO NOTHING
`

// Publish 批量写入事件，一批共用一次网络往返
func (s *PostgresStore) Publish(ctx context.Context, events []*core.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(insertEventSQL,
			ev.Signature.String(),
			int64(ev.ID),
			int64(ev.Slot),
			int32(ev.TxIndex),
			ev.Kind,
			int16(ev.Dex),
			int16(ev.Source),
			binary.BigEndian.AppendUint64(nil, ev.Discriminator),
			base58.Encode(ev.Key()),
			ev.Frame,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert program event: %w", err)
		}
	}
	return nil
}

// StoredEvent 落库后的事件行
type StoredEvent struct {
	EventID  uint64
	Slot     uint64
	Kind     string
	Dex      int
	Source   core.EventSource
	EventKey string
	Frame    []byte
}

// EventsBySignature 按 event_id 升序返回一笔交易的全部事件
func (s *PostgresStore) EventsBySignature(ctx context.Context, sig types.Signature) ([]StoredEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, slot, kind, dex, source, event_key, frame
		FROM program_events
		WHERE signature = $1
		ORDER BY event_id ASC
	`, sig.String())
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			e           StoredEvent
			id, slot    int64
			dex, source int16
		)
		if err := rows.Scan(&id, &slot, &e.Kind, &dex, &source, &e.EventKey, &e.Frame); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EventID, e.Slot, e.Dex, e.Source = uint64(id), uint64(slot), int(dex), core.EventSource(source)
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkSlotStatus 插入或更新单个 slot 的处理状态
func (s *PostgresStore) MarkSlotStatus(ctx context.Context, slot uint64, status SlotStatus) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO progress_slot (slot, status, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (slot) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = NOW()
	`, int64(slot), int16(status))
	if err != nil {
		return fmt.Errorf("insert/update slot %d failed: %w", slot, err)
	}
	return nil
}

func (s *PostgresStore) MarkSlotProcessed(ctx context.Context, slot uint64) error {
	return s.MarkSlotStatus(ctx, slot, SlotProcessed)
}

// GetSlotStatus slot 不存在时返回 SlotUnknown
func (s *PostgresStore) GetSlotStatus(ctx context.Context, slot uint64) (SlotStatus, error) {
	var status int16
	err := s.pool.QueryRow(ctx, `SELECT status FROM progress_slot WHERE slot = $1`, int64(slot)).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return SlotUnknown, nil
	}
	if err != nil {
		return SlotUnknown, fmt.Errorf("get slot %d status: %w", slot, err)
	}
	return SlotStatus(status), nil
}

// LastSlot 已处理的最大 slot，没有记录时为 0
func (s *PostgresStore) LastSlot(ctx context.Context) (uint64, error) {
	var slot int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(slot), 0) FROM progress_slot WHERE status = $1`, int16(SlotProcessed)).Scan(&slot)
	if err != nil {
		return 0, fmt.Errorf("get last slot: %w", err)
	}
	return uint64(slot), nil
}
