package csvdb

import (
	"context"

	"github.com/mdii/portal/core/toolstatus"
)

type toolStatusRepository struct {
	db *DB
}

func NewToolStatusRepository(db *DB) toolstatus.Repository {
	return &toolStatusRepository{db: db}
}

func entryToRow(e toolstatus.Entry) Row {
	return Row{
		"toolId":    e.ToolID,
		"status":    e.Status,
		"reason":    e.Reason,
		"updatedBy": e.UpdatedBy,
		"updatedAt": formatTime(e.UpdatedAt),
	}
}

func (repo *toolStatusRepository) QueryStatuses(ctx context.Context) ([]toolstatus.Entry, error) {
	rows, err := repo.db.query(ctx, repo.db.toolStatus)
	if err != nil {
		return nil, err
	}
	entries := make([]toolstatus.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, toolstatus.Entry{
			ToolID:    r["toolId"],
			Status:    r["status"],
			Reason:    r["reason"],
			UpdatedBy: r["updatedBy"],
			UpdatedAt: parseTime(r["updatedAt"]),
		})
	}
	return entries, nil
}

func (repo *toolStatusRepository) UpsertStatus(ctx context.Context, e toolstatus.Entry) (toolstatus.Entry, error) {
	err := repo.db.modify(ctx, repo.db.toolStatus, func(rows []Row) ([]Row, error) {
		for i, r := range rows {
			if r["toolId"] == e.ToolID {
				rows[i] = entryToRow(e)
				return rows, nil
			}
		}
		return append(rows, entryToRow(e)), nil
	})
	if err != nil {
		return toolstatus.Entry{}, err
	}
	return e, nil
}
