package sessions

import (
	"errors"
	"testing"

	"github.com/haasonsaas/graphloom/pkg/models"
)

func TestParseIncoming(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{name: "valid", payload: `{"message":"find acme"}`, want: "find acme"},
		{name: "extra fields tolerated", payload: `{"message":"hi","trace_id":"t-1"}`, want: "hi"},
		{name: "empty message", payload: `{"message":""}`, wantErr: true},
		{name: "whitespace message", payload: `{"message":"   "}`, wantErr: true},
		{name: "missing message", payload: `{}`, wantErr: true},
		{name: "not an object", payload: `"hello"`, wantErr: true},
		{name: "malformed json", payload: `{"message":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIncoming([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrBadFrame) {
					t.Fatalf("ParseIncoming() error = %v, want ErrBadFrame", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIncoming() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseIncoming() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorEvent(t *testing.T) {
	event := ErrorEvent(errors.New("boom"))
	if event.Kind != models.EventError || event.Message != "boom" {
		t.Fatalf("event = %+v", event)
	}
}
