package adjust

import (
	"encoding/json"
	"strconv"

	"github.com/adjust-tools/callback-snapshot-manager/callback"
)

// Dashboard API wire format.

type appsResponse struct {
	Apps []app `json:"apps"`
}

type app struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// callbackID is the id the dashboard uses to address a callback: the
// trigger name for standard callbacks, a numeric event id for custom
// in-app event callbacks.
type callbackID struct {
	Kind    string
	EventID int
}

func (c *callbackID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Kind)
	}
	return json.Unmarshal(data, &c.EventID)
}

func (c callbackID) pathSegment() string {
	if c.Kind != "" {
		return c.Kind
	}
	return strconv.Itoa(c.EventID)
}

type rawCallback struct {
	ID     callbackID `json:"id"`
	Name   string     `json:"name"`
	URL    string     `json:"url"`
	Custom bool       `json:"custom"`
	Token  string     `json:"token"`
}

func (rc rawCallback) toRecord(a app) callback.Record {
	record := callback.Record{
		AppToken:     a.Token,
		AppName:      a.Name,
		Kind:         rc.ID.Kind,
		URL:          rc.URL,
		Placeholders: callback.TemplatePlaceholders(rc.URL),
		Enabled:      true,
	}
	if rc.ID.Kind == "" {
		record.Kind = callback.KindEvent
		record.Event = rc.Name
	}
	return record
}

func (rc rawCallback) identity(appToken string) callback.Identity {
	id := callback.Identity{AppToken: appToken, Kind: rc.ID.Kind}
	if rc.ID.Kind == "" {
		id.Kind = callback.KindEvent
		id.Event = rc.Name
	}
	return id
}

type signInRequest struct {
	User credentials `json:"user"`
}

type credentials struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type user struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type updateCallbackRequest struct {
	CallbackURL string `json:"callback_url"`
}
