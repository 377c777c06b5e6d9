package keyboard

import "testing"

func TestDecoderSimpleKeyDownUp(t *testing.T) {
	var d decoder

	ev, ok := d.feed(0x1E) // 'A' make code
	if !ok {
		t.Fatal("expected a key-down event for 0x1E")
	}
	if ev.Code != KeyA || ev.State != Down {
		t.Fatalf("got %+v, want {KeyA Down}", ev)
	}

	ev, ok = d.feed(0x1E | releaseBit)
	if !ok {
		t.Fatal("expected a key-up event for the break code")
	}
	if ev.Code != KeyA || ev.State != Up {
		t.Fatalf("got %+v, want {KeyA Up}", ev)
	}
}

func TestDecoderExtendedKey(t *testing.T) {
	var d decoder

	if _, ok := d.feed(extendedPrefix); ok {
		t.Fatal("the 0xE0 prefix byte alone must not produce an event")
	}

	ev, ok := d.feed(0x48) // extended arrow-up make code
	if !ok {
		t.Fatal("expected an event once the extended byte follows the prefix")
	}
	if ev.Code != KeyArrowUp || ev.State != Down {
		t.Fatalf("got %+v, want {KeyArrowUp Down}", ev)
	}

	// The extended flag must not leak into the next, unprefixed byte.
	ev, ok = d.feed(0x1E)
	if !ok || ev.Code != KeyA {
		t.Fatalf("expected an unprefixed 'A' after the extended key, got %+v ok=%v", ev, ok)
	}
}

func TestDecoderUnknownCodeProducesNoEvent(t *testing.T) {
	var d decoder
	if _, ok := d.feed(0x59); ok {
		t.Fatal("expected an unmapped make code to produce no event")
	}
}

func TestHandleScancodeNotifiesListeners(t *testing.T) {
	origListeners := listeners
	defer func() { listeners = origListeners }()
	listeners = nil
	defaultDecoder = decoder{}

	var got []KeyEvent
	Register(func(ev KeyEvent) { got = append(got, ev) })

	HandleScancode(0x1E)
	HandleScancode(0x1E | releaseBit)

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].State != Down || got[1].State != Up {
		t.Fatalf("unexpected event order: %+v", got)
	}
}
