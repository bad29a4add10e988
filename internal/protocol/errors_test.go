package protocol

import (
	"errors"
	"testing"
)

func TestIsKnownCode(t *testing.T) {
	for _, c := range []string{"", ErrProtoBadRequest, ErrProtoVersion, ErrBadInput, ErrSaveFailed, ErrInternal} {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestNewError(t *testing.T) {
	e := NewError(ErrBadInput, "unknown key")
	if e.Type != TypeError || e.ProtocolVersion != Version || e.Code != ErrBadInput {
		t.Fatalf("unexpected error message: %+v", e)
	}
	if e := NewError("E_NOT_DEFINED", ""); e.Code != ErrInternal || e.Message == "" {
		t.Fatalf("unknown code not mapped: %+v", e)
	}
}

func TestDecode(t *testing.T) {
	var in InputMsg
	if err := Decode([]byte(`{"type":"INPUT","protocol_version":"1.0","seq":7}`), TypeInput, &in); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in.Seq != 7 {
		t.Fatalf("seq: got %d", in.Seq)
	}

	cases := map[string]struct {
		msg  string
		want error
		code string
	}{
		"type":    {`{"type":"HELLO","protocol_version":"1.0"}`, ErrUnexpectedType, ErrProtoBadRequest},
		"version": {`{"type":"INPUT","protocol_version":"0.9"}`, ErrVersionMismatch, ErrProtoVersion},
		"json":    {`{"type":`, nil, ErrProtoBadRequest},
	}
	for name, tc := range cases {
		err := Decode([]byte(tc.msg), TypeInput, &in)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", name, err, tc.want)
		}
		if got := CodeFor(err); got != tc.code {
			t.Fatalf("%s: code %s want %s", name, got, tc.code)
		}
	}
}
