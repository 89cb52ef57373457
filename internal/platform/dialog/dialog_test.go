package dialog

import (
	"testing"

	"github.com/goccy/go-json"
)

type pick struct {
	Action   string `json:"action"`
	PolicyID int64  `json:"policy_id"`
}

func TestDecode_Canceled(t *testing.T) {
	_, ok, err := Decode[pick](Canceled())
	if err != nil || ok {
		t.Errorf("Decode(canceled) = ok %v, err %v", ok, err)
	}
}

func TestDecode_ConfirmedWithoutPayload(t *testing.T) {
	_, ok, err := Decode[pick](Result{Confirmed: true})
	if err != nil || ok {
		t.Errorf("Decode(no payload) = ok %v, err %v", ok, err)
	}
}

func TestDecode_Value(t *testing.T) {
	got, ok, err := Decode[pick](Confirmed(pick{Action: "confirm", PolicyID: 4}))
	if err != nil || !ok || got.PolicyID != 4 {
		t.Errorf("Decode(value) = %+v, %v, %v", got, ok, err)
	}
}

func TestDecode_Pointer(t *testing.T) {
	got, ok, err := Decode[pick](Confirmed(&pick{Action: "create"}))
	if err != nil || !ok || got.Action != "create" {
		t.Errorf("Decode(pointer) = %+v, %v, %v", got, ok, err)
	}
}

func TestDecode_RawJSON(t *testing.T) {
	got, ok, err := Decode[pick](Confirmed(json.RawMessage(`{"action":"confirm","policy_id":9}`)))
	if err != nil || !ok || got.PolicyID != 9 {
		t.Errorf("Decode(raw) = %+v, %v, %v", got, ok, err)
	}
}

func TestDecode_Map(t *testing.T) {
	got, ok, err := Decode[pick](Confirmed(map[string]any{"action": "select", "policy_id": 2}))
	if err != nil || !ok || got.Action != "select" || got.PolicyID != 2 {
		t.Errorf("Decode(map) = %+v, %v, %v", got, ok, err)
	}
}

func TestDecode_BadJSON(t *testing.T) {
	_, ok, err := Decode[pick](Confirmed(json.RawMessage(`{"policy_id":"x"}`)))
	if err == nil || ok {
		t.Errorf("expected decode error, got ok %v err %v", ok, err)
	}
}
