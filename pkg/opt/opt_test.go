package opt

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestValue_ZeroIsAbsent(t *testing.T) {
	var v Value[float64]
	if v.IsSet() {
		t.Fatal("expected zero Value to be absent")
	}
	if got := v.Or(1.5); got != 1.5 {
		t.Errorf("Or() = %v, want 1.5", got)
	}
	if v.Ptr() != nil {
		t.Error("expected nil pointer for absent value")
	}
}

func TestValue_SomeZeroIsPresent(t *testing.T) {
	v := Some(0.0)
	got, ok := v.Get()
	if !ok || got != 0 {
		t.Fatalf("Get() = %v, %v; want 0, true", got, ok)
	}
}

func TestValue_MarshalAbsentAsFalse(t *testing.T) {
	data, err := json.Marshal(struct {
		Sphere Value[float64] `json:"sphere"`
		Axis   Value[int]     `json:"axis"`
	}{Axis: Some(0)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"sphere":false,"axis":0}` {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestValue_UnmarshalFalseAndNull(t *testing.T) {
	for _, in := range []string{`false`, `null`, ` false `} {
		v := Some("x")
		if err := json.Unmarshal([]byte(in), &v); err != nil {
			t.Fatalf("unmarshal %q: %v", in, err)
		}
		if v.IsSet() {
			t.Errorf("expected %q to decode as absent", in)
		}
	}
}

func TestValue_UnmarshalEmptyStringIsPresent(t *testing.T) {
	var v Value[string]
	if err := json.Unmarshal([]byte(`""`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, ok := v.Get()
	if !ok || got != "" {
		t.Errorf("Get() = %q, %v; want \"\", true", got, ok)
	}
}

func TestFromPtr(t *testing.T) {
	n := 7
	if v := FromPtr(&n); v.Or(0) != 7 {
		t.Errorf("FromPtr(&7) = %v", v.Or(0))
	}
	if v := FromPtr[int](nil); v.IsSet() {
		t.Error("FromPtr(nil) should be absent")
	}
}
