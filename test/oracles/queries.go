package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns queries that must come back empty on a consistent database.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_created_event_first",
			SQL: `SELECT d.id FROM disputes d
                  WHERE NOT EXISTS (
                      SELECT 1 FROM dispute_events e
                      WHERE e.dispute_id = d.id AND e.event_type_code = 'CREATED'
                        AND e.seq = (SELECT MIN(seq) FROM dispute_events WHERE dispute_id = d.id))`,
		},
		{
			Name: "O2_version_matches_events",
			SQL: `SELECT d.id, d.version, COUNT(e.id) FROM disputes d
                  LEFT JOIN dispute_events e ON e.dispute_id = d.id
                  GROUP BY d.id, d.version HAVING COUNT(e.id) <> d.version`,
		},
		{
			Name: "O3_old_status_chain",
			SQL: `WITH chain AS (
                      SELECT dispute_id, seq, event_data,
                             LAG(event_data) OVER (PARTITION BY dispute_id ORDER BY seq) AS prev
                      FROM dispute_events)
                  SELECT dispute_id, seq FROM chain
                  WHERE prev IS NOT NULL
                    AND event_data->>'oldStatus' IS DISTINCT FROM COALESCE(prev->>'newStatus', prev->>'status')`,
		},
		{
			Name: "O4_status_matches_last_event",
			SQL: `SELECT d.id FROM disputes d
                  JOIN LATERAL (
                      SELECT event_data FROM dispute_events WHERE dispute_id = d.id ORDER BY seq DESC LIMIT 1) last ON true
                  WHERE COALESCE(last.event_data->>'newStatus', last.event_data->>'status') <> d.status_code`,
		},
		{
			Name: "O5_outbox_row_per_event",
			SQL: `SELECT e.id FROM dispute_events e
                  LEFT JOIN outbox o ON o.event_id = e.id
                  WHERE o.id IS NULL`,
		},
		{
			Name: "O6_outbox_key_order",
			SQL: `SELECT o.id FROM outbox o
                  JOIN outbox earlier ON earlier.partition_key = o.partition_key AND earlier.seq < o.seq
                  WHERE o.status = 'published' AND earlier.status = 'pending'`,
		},
		{
			Name: "O7_timestamps_monotonic",
			SQL: `SELECT id FROM disputes WHERE updated_at < created_at`,
		},
		{
			Name: "O8_append_only_guard",
			SQL: `SELECT 'missing_append_only_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'dispute_events_no_mutation')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
