package timeline

import (
	"bytes"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/d60-Lab/fedtimeline/internal/account"
	"github.com/d60-Lab/fedtimeline/internal/model"
	"github.com/d60-Lab/fedtimeline/pkg/logger"
)

// Streaming event types handled by collections; every other type is ignored.
const (
	StreamUpdate       = "update"
	StreamDelete       = "delete"
	StreamStatusUpdate = "status.update"
)

// applyStream handles one push event. inserts is false for collections that
// never take new rows from the stream (threads). A pushed post that is not
// held becomes the new head whatever its id.
func (c *collection) applyStream(ev account.Event, inserts bool) {
	switch ev.StreamEvent {
	case StreamUpdate:
		p, err := model.DecodePost(ev.Payload)
		if err != nil {
			logger.Debug("discarding malformed update event", zap.Error(err))
			return
		}
		if row := c.rowOf(p.ID); row >= 0 {
			c.posts[row].ReplaceWith(p)
			c.changed(row)
			return
		}
		if inserts {
			c.prepend(p)
		}
	case StreamStatusUpdate:
		p, err := model.DecodePost(ev.Payload)
		if err != nil {
			logger.Debug("discarding malformed status.update event", zap.Error(err))
			return
		}
		if row := c.rowOf(p.ID); row >= 0 {
			c.posts[row].ApplyEdit(p)
			c.changed(row)
		}
	case StreamDelete:
		id := deletedID(ev.Payload)
		if id == "" {
			logger.Debug("discarding malformed delete event")
			return
		}
		if row := c.rowOf(id); row >= 0 {
			c.remove(row)
		}
	}
}

// deletedID accepts both the bare id and a JSON string.
func deletedID(payload []byte) string {
	payload = bytes.TrimSpace(payload)
	if len(payload) > 0 && payload[0] == '"' {
		var id string
		if err := json.Unmarshal(payload, &id); err != nil {
			return ""
		}
		return id
	}
	if bytes.ContainsAny(payload, " \t\r\n{}[]\"") {
		return ""
	}
	return string(payload)
}
