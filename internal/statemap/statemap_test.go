package statemap

import (
	"testing"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
)

func TestTranslateRawState_TableEntries(t *testing.T) {
	contact := model.TypedDeviceInfo{Type: model.DeviceTypeSensor, Subtype: model.SubtypeContact}
	lock := model.TypedDeviceInfo{Type: model.DeviceTypeLock}

	cases := []struct {
		info model.TypedDeviceInfo
		raw  string
		want model.IntermediateState
	}{
		{contact, "open", model.StateOpen},
		{contact, "closed", model.StateClosed},
		{contact, "OPEN", model.StateOpen},
		{lock, "locked", model.StateLocked},
		{lock, "Unlocked", model.StateUnlocked},
		{model.TypedDeviceInfo{Type: model.DeviceTypeSensor, Subtype: model.SubtypeLeak}, "full", model.StateAlert},
		{model.TypedDeviceInfo{Type: model.DeviceTypeOutlet}, "on", model.StateOn},
	}
	for _, c := range cases {
		got, ok := TranslateRawState(c.info, c.raw)
		if !ok {
			t.Fatalf("%+v/%s: expected a translation", c.info, c.raw)
		}
		if got != c.want {
			t.Fatalf("%+v/%s: expected %+v, got %+v", c.info, c.raw, c.want, got)
		}
	}
}

func TestTranslateRawState_MissReturnsNotOK(t *testing.T) {
	contact := model.TypedDeviceInfo{Type: model.DeviceTypeSensor, Subtype: model.SubtypeContact}
	if _, ok := TranslateRawState(contact, "ajar"); ok {
		t.Fatalf("expected no translation for unknown value")
	}
	if _, ok := TranslateRawState(model.TypedDeviceInfo{Type: model.DeviceTypeUnmapped}, "open"); ok {
		t.Fatalf("expected no translation for unmapped device")
	}
	if _, ok := TranslateRawState(contact, ""); ok {
		t.Fatalf("expected no translation for empty value")
	}
}

func TestDisplayState(t *testing.T) {
	if s, ok := DisplayState(model.StateOpen); !ok || s != "Open" {
		t.Fatalf("expected Open, got %q ok=%v", s, ok)
	}
	if _, ok := DisplayState(model.IntermediateState{Kind: "bogus", Value: "x"}); ok {
		t.Fatalf("expected no display string for undefined state")
	}
}
