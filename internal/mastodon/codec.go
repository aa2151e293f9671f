package mastodon

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/d60-Lab/fedtimeline/internal/model"
)

func decodeContext(body []byte, sc *statusContext) error {
	var raw struct {
		Ancestors   json.RawMessage `json:"ancestors"`
		Descendants json.RawMessage `json:"descendants"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return errors.Join(model.ErrInvalidPost, err)
	}
	var err error
	if sc.Ancestors, err = decodeOptional(raw.Ancestors); err != nil {
		return err
	}
	sc.Descendants, err = decodeOptional(raw.Descendants)
	return err
}

func decodeOptional(raw json.RawMessage) ([]*model.Post, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return model.DecodePosts(raw)
}

// errorMessage extracts {"error": "..."} or falls back to the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
