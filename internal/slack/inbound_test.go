package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/turnq/internal/bot"
	"github.com/Iron-Ham/turnq/internal/turnqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sign sets Slack's signature headers on h for body.
func sign(h http.Header, secret string, body []byte, at time.Time) {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + ts + ":"))
	mac.Write(body)
	h.Set("X-Slack-Request-Timestamp", ts)
	h.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyRequest(t *testing.T) {
	body := []byte("command=%2Fqueue&text=join")

	h := http.Header{}
	sign(h, "s3cret", body, time.Now())
	assert.NoError(t, VerifyRequest(h, body, "s3cret"))

	assert.ErrorIs(t, VerifyRequest(h, body, "other"), ErrBadSignature)
	assert.ErrorIs(t, VerifyRequest(h, []byte("tampered"), "s3cret"), ErrBadSignature)
	assert.ErrorIs(t, VerifyRequest(http.Header{}, body, "s3cret"), ErrBadSignature)

	stale := http.Header{}
	sign(stale, "s3cret", body, time.Now().Add(-time.Hour))
	assert.ErrorIs(t, VerifyRequest(stale, body, "s3cret"), ErrBadSignature)
}

func TestParseSlashCommand(t *testing.T) {
	form := url.Values{
		"command":      {"/queue"},
		"text":         {"join"},
		"channel_id":   {"C1"},
		"user_id":      {"U1"},
		"response_url": {"https://hooks.slack.test/commands/1"},
	}
	r := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	req, err := ParseSlashCommand(r)
	require.NoError(t, err)
	assert.Equal(t, turnqueue.ContainerKey("C1"), req.Key)
	assert.Equal(t, bot.Requester{UserID: "U1", ResponseURL: "https://hooks.slack.test/commands/1"}, req.From)
	assert.Equal(t, "join", req.Text)
}

func TestParseEvent_URLVerification(t *testing.T) {
	body := []byte(`{"type":"url_verification","token":"t","challenge":"abc123"}`)

	res, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.Challenge)
	assert.Nil(t, res.Request)
}

func TestParseEvent_AppMention(t *testing.T) {
	tests := []struct {
		name       string
		threadTS   string
		wantThread string
	}{
		{name: "inside thread", threadTS: "1700000000.000100", wantThread: "1700000000.000100"},
		{name: "top level roots a thread", threadTS: "", wantThread: "1700000005.000500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thread := ""
			if tt.threadTS != "" {
				thread = `"thread_ts":"` + tt.threadTS + `",`
			}
			body := []byte(`{
				"type":"event_callback",
				"team_id":"T1",
				"event_id":"Ev1",
				"event":{
					"type":"app_mention",
					"user":"U1",
					"text":"<@UBOT> done",
					"ts":"1700000005.000500",
					` + thread + `
					"channel":"C1",
					"event_ts":"1700000005.000500"
				}
			}`)

			res, err := ParseEvent(body)
			require.NoError(t, err)
			require.NotNil(t, res.Request)
			assert.Equal(t, turnqueue.NewKey("C1", tt.wantThread), res.Request.Key)
			assert.Equal(t, "U1", res.Request.From.UserID)
			assert.Equal(t, "done", res.Request.Text)
			assert.Equal(t, "Ev1", res.EventID)
		})
	}
}

func TestParseEvent_IgnoresOtherEvents(t *testing.T) {
	body := []byte(`{"type":"event_callback","event":{"type":"reaction_added","user":"U1","reaction":"thumbsup"}}`)

	res, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Nil(t, res.Request)
	assert.Empty(t, res.Challenge)
}

func TestParseEvent_Malformed(t *testing.T) {
	_, err := ParseEvent([]byte(`{not json`))
	assert.Error(t, err)
}

func interactionRequest(payload string) *http.Request {
	form := url.Values{"payload": {payload}}
	r := httptest.NewRequest(http.MethodPost, "/slack/interactions", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestParseInteraction(t *testing.T) {
	payload := `{
		"type":"block_actions",
		"user":{"id":"U1"},
		"channel":{"id":"C1"},
		"container":{"type":"message","message_ts":"1700000001.000200","channel_id":"C1","thread_ts":"1700000000.000100"},
		"response_url":"https://hooks.slack.test/actions/1",
		"actions":[
			{"action_id":"queue_done","block_id":"queue_actions","type":"button","value":"queue_done"},
			{"action_id":"unrelated","block_id":"x","type":"button"}
		]
	}`

	cmds, err := ParseInteraction(interactionRequest(payload))
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, bot.Command{
		Action:    bot.ActionDone,
		Key:       turnqueue.NewKey("C1", "1700000000.000100"),
		Requester: bot.Requester{UserID: "U1", ResponseURL: "https://hooks.slack.test/actions/1"},
	}, cmds[0])
}

func TestParseInteraction_ContainerWide(t *testing.T) {
	payload := `{
		"type":"block_actions",
		"user":{"id":"U1"},
		"channel":{"id":"C1"},
		"container":{"type":"message","message_ts":"1700000001.000200","channel_id":"C1"},
		"actions":[{"action_id":"queue_join","block_id":"queue_actions","type":"button"}]
	}`

	cmds, err := ParseInteraction(interactionRequest(payload))
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, bot.ActionJoin, cmds[0].Action)
	assert.Equal(t, turnqueue.ContainerKey("C1"), cmds[0].Key)
}

func TestParseInteraction_MessageThreadFallback(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    turnqueue.Key
	}{
		{
			name:    "reply inside a thread",
			message: `{"type":"message","ts":"1700000001.000200","thread_ts":"1700000000.000100"}`,
			want:    turnqueue.NewKey("C1", "1700000000.000100"),
		},
		{
			name:    "thread parent stays container wide",
			message: `{"type":"message","ts":"1700000001.000200","thread_ts":"1700000001.000200"}`,
			want:    turnqueue.ContainerKey("C1"),
		},
		{
			name:    "top level message",
			message: `{"type":"message","ts":"1700000001.000200"}`,
			want:    turnqueue.ContainerKey("C1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{
				"type":"block_actions",
				"user":{"id":"U1"},
				"channel":{"id":"C1"},
				"container":{"type":"message","message_ts":"1700000001.000200","channel_id":"C1"},
				"message":` + tt.message + `,
				"actions":[{"action_id":"queue_done","block_id":"queue_actions","type":"button"}]
			}`

			cmds, err := ParseInteraction(interactionRequest(payload))
			require.NoError(t, err)
			require.Len(t, cmds, 1)
			assert.Equal(t, tt.want, cmds[0].Key)
		})
	}
}

func TestParseInteraction_Errors(t *testing.T) {
	_, err := ParseInteraction(interactionRequest(""))
	assert.Error(t, err)

	_, err = ParseInteraction(interactionRequest("{broken"))
	assert.Error(t, err)

	cmds, err := ParseInteraction(interactionRequest(`{"type":"view_submission"}`))
	assert.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestStripMentions(t *testing.T) {
	assert.Equal(t, "join", StripMentions("<@UBOT> join"))
	assert.Equal(t, "list now", StripMentions("  <@UBOT>   list <@U2> now "))
	assert.Equal(t, "", StripMentions("<@UBOT>"))
}
