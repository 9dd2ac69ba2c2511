package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

const defaultAPIBase = "https://www.plurk.com"

// Requester calls a Plurk API endpoint and decodes the JSON result into out (if non-nil).
type Requester interface {
	Request(ctx context.Context, path string, params url.Values, out any) error
}

// PlurkClient signs API requests with OAuth 1.0a (HMAC-SHA1).
type PlurkClient struct {
	baseURL string
	http    *http.Client
}

type PlurkCredentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

func NewPlurkClient(ctx context.Context, baseURL string, creds PlurkCredentials, timeout time.Duration) *PlurkClient {
	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.Token, creds.TokenSecret)
	client := config.Client(ctx, token)
	client.Timeout = timeout
	return &PlurkClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}
}

func (c *PlurkClient) Request(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("plurk api %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Path: path, Status: resp.StatusCode, Text: strings.TrimSpace(string(body))}
		var e struct {
			ErrorText string `json:"error_text"`
		}
		if json.Unmarshal(body, &e) == nil && e.ErrorText != "" {
			apiErr.Text = e.ErrorText
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// PlurkAPI wraps the endpoints the bot uses.
type PlurkAPI struct {
	r Requester
}

func NewPlurkAPI(r Requester) *PlurkAPI {
	return &PlurkAPI{r: r}
}

// UserChannel is the comet subscription returned by /APP/Realtime/getUserChannel.
type UserChannel struct {
	CometServer string `json:"comet_server"`
	ChannelName string `json:"channel_name"`
}

func (a *PlurkAPI) Me(ctx context.Context) (User, error) {
	var u User
	err := a.r.Request(ctx, "/APP/Users/me", nil, &u)
	return u, err
}

func (a *PlurkAPI) UserChannel(ctx context.Context) (UserChannel, error) {
	var ch UserChannel
	err := a.r.Request(ctx, "/APP/Realtime/getUserChannel", nil, &ch)
	return ch, err
}

func (a *PlurkAPI) AddResponse(ctx context.Context, plurkID int64, content string) error {
	return a.r.Request(ctx, "/APP/Responses/responseAdd", url.Values{
		"plurk_id":  {strconv.FormatInt(plurkID, 10)},
		"qualifier": {":"},
		"content":   {content},
	}, nil)
}

func (a *PlurkAPI) AddPlurk(ctx context.Context, content string, limitedTo []int64) (Plurk, error) {
	var p Plurk
	err := a.r.Request(ctx, "/APP/Timeline/plurkAdd", url.Values{
		"qualifier":  {":"},
		"content":    {content},
		"limited_to": {formatLimitedTo(limitedTo)},
	}, &p)
	return p, err
}

func (a *PlurkAPI) EditLimitedTo(ctx context.Context, plurkID int64, limitedTo []int64) error {
	return a.r.Request(ctx, "/APP/Timeline/plurkEdit", url.Values{
		"plurk_id":   {strconv.FormatInt(plurkID, 10)},
		"limited_to": {formatLimitedTo(limitedTo)},
	}, nil)
}

func (a *PlurkAPI) DeletePlurk(ctx context.Context, plurkID int64) error {
	return a.r.Request(ctx, "/APP/Timeline/plurkDelete", url.Values{
		"plurk_id": {strconv.FormatInt(plurkID, 10)},
	}, nil)
}

func (a *PlurkAPI) PublicProfile(ctx context.Context, userID int64) (User, error) {
	var profile struct {
		UserInfo User `json:"user_info"`
	}
	err := a.r.Request(ctx, "/APP/Profile/getPublicProfile", url.Values{
		"user_id":        {strconv.FormatInt(userID, 10)},
		"include_plurks": {"false"},
	}, &profile)
	return profile.UserInfo, err
}

func (a *PlurkAPI) AddAllAsFriends(ctx context.Context) error {
	return a.r.Request(ctx, "/APP/Alerts/addAllAsFriends", nil, nil)
}

// formatLimitedTo renders ids as the JSON array the API expects, e.g. [1,2].
func formatLimitedTo(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
