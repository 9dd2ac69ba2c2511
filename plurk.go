package main

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// Plurk is a top-level post as delivered by the API and the comet stream.
type Plurk struct {
	PlurkID    int64   `json:"plurk_id"`
	OwnerID    int64   `json:"owner_id"`
	UserID     int64   `json:"user_id"`
	Qualifier  string  `json:"qualifier"`
	Content    string  `json:"content"`
	ContentRaw string  `json:"content_raw"`
	LimitedTo  *string `json:"limited_to"`
	Posted     string  `json:"posted,omitempty"`
}

// Response is a reply to a plurk.
type Response struct {
	ID         int64  `json:"id"`
	PlurkID    int64  `json:"plurk_id"`
	UserID     int64  `json:"user_id"`
	Qualifier  string `json:"qualifier"`
	Content    string `json:"content"`
	ContentRaw string `json:"content_raw"`
}

// User is the subset of a Plurk user record the bot reads.
type User struct {
	ID          int64  `json:"id"`
	NickName    string `json:"nick_name"`
	DisplayName string `json:"display_name"`
}

// PlurkEvent is a "new_plurk" comet element. Raw holds the element verbatim.
type PlurkEvent struct {
	Plurk Plurk
	Raw   json.RawMessage
}

// ResponseEvent is a "new_response" comet element. Users is keyed by decimal user id.
type ResponseEvent struct {
	Plurk    Plurk           `json:"plurk"`
	Response Response        `json:"response"`
	Users    map[string]User `json:"user"`
	Raw      json.RawMessage `json:"-"`
}

// User looks up a user attached to the event.
func (e ResponseEvent) User(id int64) (User, bool) {
	u, ok := e.Users[strconv.FormatInt(id, 10)]
	return u, ok
}

var limitedToPattern = regexp.MustCompile(`^\|([^|]*)\|`)

// parseLimitedTo parses "|1||2|" into [1 2]. Parsing stops at the first segment that does
// not follow the |id| form; non-numeric ids are skipped.
func parseLimitedTo(text string) []int64 {
	ids := []int64{}
	for {
		m := limitedToPattern.FindStringSubmatch(text)
		if m == nil {
			return ids
		}
		text = text[len(m[0]):]
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
}

// matchRequestLimitedTo is the limited_to of a private plurk from user to bot.
func matchRequestLimitedTo(botID, userID int64) string {
	return fmt.Sprintf("|%d||%d|", botID, userID)
}

// truncate shortens text to at most length runes, marking the cut with an ellipsis.
func truncate(text string, length int) string {
	r := []rune(text)
	if len(r) <= length {
		return text
	}
	if length <= 0 {
		return ""
	}
	return string(r[:length-1]) + "…"
}

func plurkURL(plurkID int64) string {
	return "https://www.plurk.com/p/" + strconv.FormatInt(plurkID, 36)
}
