package routine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"family-ops/internal/store"
)

const legacyPrefix = "tasklog_"

// MigrationResult counts what MigrateLegacyTaskLogs did.
type MigrationResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

func isLegacyTaskLog(id string) bool {
	return strings.HasPrefix(id, legacyPrefix)
}

// parseLegacyID splits tasklog_{routineID}_{taskIndex}_{date}.
func parseLegacyID(id string) (routineID string, taskIndex int, date string, ok bool) {
	parts := strings.Split(strings.TrimPrefix(id, legacyPrefix), "_")
	if !isLegacyTaskLog(id) || len(parts) < 3 {
		return "", 0, "", false
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil || parts[0] == "" {
		return "", 0, "", false
	}
	return parts[0], idx, strings.Join(parts[2:], "_"), true
}

// MigrateLegacyTaskLogs moves per-task rows that older clients wrote into
// routine_logs over to routine_task_logs, keeping their ids. Rows whose id
// does not parse are left alone. A row that fails to move is logged and
// kept for the next run.
func MigrateLegacyTaskLogs(ctx context.Context, gw store.Gateway, logger *slog.Logger) (MigrationResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	legacy, err := gw.List(ctx, store.RoutineLogs, store.Query{
		Where: store.Filter{"id": store.Prefix(legacyPrefix)},
	})
	if err != nil {
		return MigrationResult{}, fmt.Errorf("failed to list legacy task logs: %w", err)
	}

	var res MigrationResult
	for _, row := range legacy {
		routineID, idx, date, ok := parseLegacyID(row.ID())
		if !ok {
			logger.Warn("routine.migrate.unparsable", "id", row.ID())
			continue
		}
		created, updated, err := moveLegacyRow(ctx, gw, row, routineID, idx, date)
		if err != nil {
			logger.Error("routine.migrate.failed", "id", row.ID(), "err", err)
			continue
		}
		if created {
			res.Created++
		}
		if updated {
			res.Updated++
		}
		res.Deleted++
	}
	logger.Info("routine.migrate", "legacy", len(legacy), "created", res.Created, "updated", res.Updated, "deleted", res.Deleted)
	return res, nil
}

func moveLegacyRow(ctx context.Context, gw store.Gateway, row store.Record, routineID string, idx int, date string) (created, updated bool, err error) {
	id := row.ID()
	checked := store.Truthy(row["checked"])

	dest, err := store.Get(ctx, gw, store.RoutineTaskLogs, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if _, err := gw.Create(ctx, store.RoutineTaskLogs, store.Record{
			"id": id, "routine_id": routineID, "task_index": idx, "date": date, "checked": checked,
		}); err != nil {
			return false, false, err
		}
		created = true
	case err != nil:
		return false, false, err
	case row["checked"] != nil && store.Truthy(dest["checked"]) != checked:
		if err := gw.Update(ctx, store.RoutineTaskLogs, id, store.Record{"checked": checked}); err != nil {
			return false, false, err
		}
		updated = true
	}

	if err := gw.Delete(ctx, store.RoutineLogs, id); err != nil {
		return created, updated, err
	}
	return created, updated, nil
}
