package events

import "testing"

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare" }

func TestLendingPositionChangedEvent(t *testing.T) {
	evt := LendingPositionChanged{
		Action:     "borrow",
		Account:    "lend1xyz",
		Asset:      " xlm ",
		Amount:     250,
		Collateral: 1000,
		Debt:       500,
		Timestamp:  1_700_000_000,
	}.Event()
	if evt.Type != TypeLendingBorrow {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["asset"] != "XLM" {
		t.Fatalf("unexpected asset attr: %s", evt.Attributes["asset"])
	}
	if evt.Attributes["amount"] != "250" || evt.Attributes["debt"] != "500" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
	if evt.Attributes["timestamp"] != "1700000000" {
		t.Fatalf("unexpected timestamp: %s", evt.Attributes["timestamp"])
	}
}

func TestBlankAssetRendersUnknown(t *testing.T) {
	evt := LendingPositionChanged{Action: "deposit", Account: "lend1xyz", Asset: "  ", Amount: 1}.Event()
	if evt.Attributes["asset"] != "UNKNOWN" {
		t.Fatalf("blank asset must render as UNKNOWN, got %q", evt.Attributes["asset"])
	}
}

func TestAdminChangedOmitsEmptyCaller(t *testing.T) {
	evt := AdminChanged{Type: TypeAdminInitialized, Target: "lend1abc"}.Event()
	if _, ok := evt.Attributes["caller"]; ok {
		t.Fatalf("initialisation has no caller: %+v", evt.Attributes)
	}
	evt = AdminChanged{Type: TypeAdminAdded, Caller: "lend1abc", Target: "lend1def"}.Event()
	if evt.Attributes["caller"] != "lend1abc" {
		t.Fatalf("missing caller: %+v", evt.Attributes)
	}
}

func TestRenderFallsBackToType(t *testing.T) {
	if Render(nil) != nil {
		t.Fatalf("nil event must render to nil")
	}
	evt := Render(bareEvent{})
	if evt.Type != "bare" || len(evt.Attributes) != 0 {
		t.Fatalf("unexpected render: %+v", evt)
	}
}

func TestRecorderKeepsMostRecent(t *testing.T) {
	rec := NewRecorder(2)
	multi := MultiEmitter{NoopEmitter{}, nil, rec}
	multi.Emit(AdminChanged{Type: TypeAdminInitialized, Target: "a"})
	multi.Emit(AdminChanged{Type: TypeAdminAdded, Target: "b"})
	multi.Emit(AdminChanged{Type: TypeAdminRemoved, Target: "c"})

	types := rec.Types()
	if len(types) != 2 || types[0] != TypeAdminAdded || types[1] != TypeAdminRemoved {
		t.Fatalf("unexpected recorded types: %v", types)
	}

	var nilRecorder *Recorder
	nilRecorder.Emit(bareEvent{})
	if nilRecorder.Events() != nil {
		t.Fatalf("nil recorder must stay empty")
	}
}
