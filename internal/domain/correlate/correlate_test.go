package correlate

import (
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

func mustID(t *testing.T, v any) jsonrpc.ID {
	t.Helper()
	id, err := jsonrpc.MakeID(v)
	if err != nil {
		t.Fatalf("MakeID(%v): %v", v, err)
	}
	return id
}

func decode(t *testing.T, raw string) jsonrpc.Message {
	t.Helper()
	msg, err := jsonrpc.DecodeMessage([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeMessage(%s): %v", raw, err)
	}
	return msg
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		msg  jsonrpc.Message
		want Kind
	}{
		{"request", decode(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call"}`), RequestKind},
		{"notification", decode(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`), NotificationKind},
		{"response", decode(t, `{"jsonrpc":"2.0","id":1,"result":{}}`), ResponseKind},
		{"error_response", decode(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"nope"}}`), ErrorResponseKind},
		{"nil", nil, Unknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.msg); got != tc.want {
				t.Errorf("Classify(%s) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

func TestExtractIDAndMethod(t *testing.T) {
	id := mustID(t, float64(7))
	req := &jsonrpc.Request{ID: id, Method: "initialize"}

	gotID, ok := ExtractID(req)
	if !ok || gotID != id {
		t.Errorf("ExtractID(req) = %v, %v; want %v, true", gotID, ok, id)
	}
	if got := ExtractMethod(req); got != "initialize" {
		t.Errorf("ExtractMethod(req) = %q, want %q", got, "initialize")
	}

	notif := decode(t, `{"jsonrpc":"2.0","method":"notifications/cancelled"}`)
	if _, ok := ExtractID(notif); ok {
		t.Error("ExtractID(notification) should report ok=false")
	}

	resp := decode(t, `{"jsonrpc":"2.0","id":7,"result":null}`)
	if got := ExtractMethod(resp); got != "" {
		t.Errorf("ExtractMethod(response) = %q, want empty", got)
	}
}

func TestRawID(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":42,"method":"ping"}`)
	got := RawID(raw)
	if string(got) != "42" {
		t.Errorf("RawID = %q, want 42", got)
	}

	if got := RawID([]byte(`not json`)); got != nil {
		t.Errorf("RawID(malformed) = %q, want nil", got)
	}
}
