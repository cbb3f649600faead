package session

import (
	"testing"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Inbound
	}{
		{"join", `{"event":"join","data":{"room":"dev","name":"Alice"}}`, Join{Room: "dev", Name: "Alice"}},
		{"join without data", `{"event":"join"}`, Join{}},
		{"message object", `{"event":"message","data":{"text":"hi"}}`, SendMessage{Text: "hi"}},
		{"message string", `{"event":"message","data":"hi"}`, SendMessage{Text: "hi"}},
		{"typing object", `{"event":"typing","data":{"isTyping":true}}`, Typing{IsTyping: true}},
		{"typing bool", `{"event":"typing","data":false}`, Typing{IsTyping: false}},
		{"typing number", `{"event":"typing","data":1}`, Typing{IsTyping: true}},
		{"typing zero", `{"event":"typing","data":{"isTyping":0}}`, Typing{IsTyping: false}},
		{"typing string", `{"event":"typing","data":"yes"}`, Typing{IsTyping: true}},
		{"typing empty string", `{"event":"typing","data":{"isTyping":""}}`, Typing{IsTyping: false}},
		{"typing without data", `{"event":"typing"}`, Typing{IsTyping: false}},
		{"react with symbol", `{"event":"react","data":{"messageId":"m1","symbol":"👍"}}`, React{MessageID: "m1", Symbol: "👍"}},
		{"react with reaction", `{"event":"react","data":{"messageId":"m1","reaction":"🎉"}}`, React{MessageID: "m1", Symbol: "🎉"}},
		{"react missing fields", `{"event":"react","data":{}}`, React{}},
		{"switch room object", `{"event":"switchRoom","data":{"room":"random"}}`, SwitchRoom{Room: "random"}},
		{"switch room string", `{"event":"switchRoom","data":"random"}`, SwitchRoom{Room: "random"}},
		{"disconnect", `{"event":"disconnect"}`, Disconnect{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"event":"shout","data":"hi"}`,
		`{"event":"message","data":42}`,
		`{"event":"typing","data":{"isTyping":tru}}`,
		`{"event":"join","data":"general"}`,
	} {
		_, err := Decode([]byte(raw))
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, domain.ErrValidation, raw)
	}
}
