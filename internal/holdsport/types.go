package holdsport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/holdwatch/internal/model"
)

// team は GET /teams のレスポンス要素。
type team struct {
	ID   looseID `json:"id"`
	Name string  `json:"name"`
}

// activity は GET /teams/{id}/activities のレスポンス要素。
type activity struct {
	ID           looseID     `json:"id"`
	Name         string      `json:"name"`
	StartTime    string      `json:"starttime"`
	Place        string      `json:"place"`
	Status       looseString `json:"status"`
	Actions      []action    `json:"actions"`
	ActionPath   string      `json:"action_path"`
	ActionMethod string      `json:"action_method"`
}

type action struct {
	ActivitiesUser actionDetail `json:"activities_user"`
}

type actionDetail struct {
	Name   string `json:"name"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

// looseString は文字列・数値・真偽値のいずれでも受け付ける文字列。
// statusフィールドは環境によって数値で返ることがある。
type looseString string

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	*s = looseString(strings.Trim(string(data), `"`))
	return nil
}

// looseID は数値と数値文字列（"42"）のどちらでも受け付けるID。
type looseID int64

// UnmarshalJSON はjson.Unmarshalerを実装する。数値として解釈できない値はエラーとする。
func (id *looseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = looseID(n)
	return nil
}

func (t team) toModel() model.Group {
	return model.Group{ID: int64(t.ID), Name: t.Name}
}

func (a activity) toModel(g model.Group) model.Event {
	actions := make([]model.ActionDescriptor, 0, len(a.Actions))
	for _, act := range a.Actions {
		actions = append(actions, model.ActionDescriptor{
			Label:  act.ActivitiesUser.Name,
			Method: act.ActivitiesUser.Method,
			Path:   act.ActivitiesUser.Path,
		})
	}
	return model.Event{
		ID:           int64(a.ID),
		GroupID:      g.ID,
		GroupName:    g.Name,
		Name:         a.Name,
		StartTime:    a.StartTime,
		Place:        a.Place,
		Status:       string(a.Status),
		Actions:      actions,
		ActionPath:   a.ActionPath,
		ActionMethod: a.ActionMethod,
	}
}
