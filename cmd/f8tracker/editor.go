package main

import (
	"context"
	"errors"

	"github.com/xelth-com/f8tracker/internal/models"
	"github.com/xelth-com/f8tracker/internal/websocket"
)

var errNotReady = errors.New("engine not ready")

// lateEditor forwards websocket edits to an editor assigned after the hub
// was built.
type lateEditor struct {
	websocket.Editor
}

func (l *lateEditor) ApplyEdit(ctx context.Context, e models.Edit) (models.Order, error) {
	if l.Editor == nil {
		return models.Order{}, errNotReady
	}
	return l.Editor.ApplyEdit(ctx, e)
}
