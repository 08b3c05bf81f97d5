package csvdb

import (
	"context"

	"github.com/mdii/portal/core/note"
)

type noteRepository struct {
	db *DB
}

func NewNoteRepository(db *DB) note.Repository {
	return &noteRepository{db: db}
}

func noteToRow(n note.Note) Row {
	return Row{
		"id":        n.ID,
		"toolId":    n.ToolID,
		"toolName":  n.ToolName,
		"content":   n.Content,
		"createdBy": n.CreatedBy,
		"createdAt": formatTime(n.CreatedAt),
		"updatedAt": formatTime(n.UpdatedAt),
	}
}

func rowToNote(r Row) note.Note {
	return note.Note{
		ID:        r["id"],
		ToolID:    r["toolId"],
		ToolName:  r["toolName"],
		Content:   r["content"],
		CreatedBy: r["createdBy"],
		CreatedAt: parseTime(r["createdAt"]),
		UpdatedAt: parseTime(r["updatedAt"]),
	}
}

func (repo *noteRepository) QueryNotes(ctx context.Context, toolID string) ([]note.Note, error) {
	rows, err := repo.db.query(ctx, repo.db.notes)
	if err != nil {
		return nil, err
	}
	notes := make([]note.Note, 0)
	for _, r := range rows {
		if r["toolId"] == toolID {
			notes = append(notes, rowToNote(r))
		}
	}
	return notes, nil
}

func (repo *noteRepository) GetNote(ctx context.Context, id string) (note.Note, error) {
	rows, err := repo.db.query(ctx, repo.db.notes)
	if err != nil {
		return note.Note{}, err
	}
	for _, r := range rows {
		if r["id"] == id {
			return rowToNote(r), nil
		}
	}
	return note.Note{}, note.ErrNotFound
}

func (repo *noteRepository) CreateNote(ctx context.Context, n note.Note) (note.Note, error) {
	err := repo.db.modify(ctx, repo.db.notes, func(rows []Row) ([]Row, error) {
		return append(rows, noteToRow(n)), nil
	})
	if err != nil {
		return note.Note{}, err
	}
	return n, nil
}

func (repo *noteRepository) UpdateNote(ctx context.Context, n note.Note) (note.Note, error) {
	err := repo.db.modify(ctx, repo.db.notes, func(rows []Row) ([]Row, error) {
		for i, r := range rows {
			if r["id"] == n.ID {
				rows[i] = noteToRow(n)
				return rows, nil
			}
		}
		return nil, note.ErrNotFound
	})
	if err != nil {
		return note.Note{}, err
	}
	return n, nil
}

func (repo *noteRepository) DeleteNote(ctx context.Context, id string) error {
	return repo.db.modify(ctx, repo.db.notes, func(rows []Row) ([]Row, error) {
		for i, r := range rows {
			if r["id"] == id {
				return append(rows[:i], rows[i+1:]...), nil
			}
		}
		return nil, note.ErrNotFound
	})
}
