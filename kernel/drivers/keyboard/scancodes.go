package keyboard

// KeyCode names a physical key, independent of its make/break code or
// whether it required the 0xE0 extended prefix.
type KeyCode uint8

const (
	KeyUnknown KeyCode = iota
	KeyEscape
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	KeyMinus
	KeyEquals
	KeyBackspace
	KeyTab
	KeyQ
	KeyW
	KeyE
	KeyR
	KeyT
	KeyY
	KeyU
	KeyI
	KeyO
	KeyP
	KeyLeftBracket
	KeyRightBracket
	KeyEnter
	KeyLeftControl
	KeyA
	KeyS
	KeyD
	KeyF
	KeyG
	KeyH
	KeyJ
	KeyK
	KeyL
	KeySemicolon
	KeyQuote
	KeyBacktick
	KeyLeftShift
	KeyBackslash
	KeyZ
	KeyX
	KeyC
	KeyV
	KeyB
	KeyN
	KeyM
	KeyComma
	KeyPeriod
	KeySlash
	KeyRightShift
	KeyKeypadAsterisk
	KeyLeftAlt
	KeySpace
	KeyCapsLock

	// extended (0xE0-prefixed) keys follow.
	KeyArrowUp
	KeyArrowDown
	KeyArrowLeft
	KeyArrowRight
	KeyRightControl
	KeyRightAlt
	KeyHome
	KeyEnd
	KeyInsert
	KeyDelete
	KeyPageUp
	KeyPageDown
)

// set1 maps an unextended Set-1 make code to a KeyCode; index 0 is
// unused since 0x00 is never a valid make code.
var set1 = [0x60]KeyCode{
	0x01: KeyEscape,
	0x02: Key1, 0x03: Key2, 0x04: Key3, 0x05: Key4, 0x06: Key5,
	0x07: Key6, 0x08: Key7, 0x09: Key8, 0x0A: Key9, 0x0B: Key0,
	0x0C: KeyMinus, 0x0D: KeyEquals, 0x0E: KeyBackspace,
	0x0F: KeyTab,
	0x10: KeyQ, 0x11: KeyW, 0x12: KeyE, 0x13: KeyR, 0x14: KeyT,
	0x15: KeyY, 0x16: KeyU, 0x17: KeyI, 0x18: KeyO, 0x19: KeyP,
	0x1A: KeyLeftBracket, 0x1B: KeyRightBracket, 0x1C: KeyEnter,
	0x1D: KeyLeftControl,
	0x1E: KeyA, 0x1F: KeyS, 0x20: KeyD, 0x21: KeyF, 0x22: KeyG,
	0x23: KeyH, 0x24: KeyJ, 0x25: KeyK, 0x26: KeyL,
	0x27: KeySemicolon, 0x28: KeyQuote, 0x29: KeyBacktick,
	0x2A: KeyLeftShift, 0x2B: KeyBackslash,
	0x2C: KeyZ, 0x2D: KeyX, 0x2E: KeyC, 0x2F: KeyV, 0x30: KeyB,
	0x31: KeyN, 0x32: KeyM,
	0x33: KeyComma, 0x34: KeyPeriod, 0x35: KeySlash,
	0x36: KeyRightShift, 0x37: KeyKeypadAsterisk,
	0x38: KeyLeftAlt, 0x39: KeySpace, 0x3A: KeyCapsLock,
}

// set1Extended maps the byte following an 0xE0 prefix to a KeyCode.
var set1Extended = map[byte]KeyCode{
	0x48: KeyArrowUp,
	0x50: KeyArrowDown,
	0x4B: KeyArrowLeft,
	0x4D: KeyArrowRight,
	0x1D: KeyRightControl,
	0x38: KeyRightAlt,
	0x47: KeyHome,
	0x4F: KeyEnd,
	0x52: KeyInsert,
	0x53: KeyDelete,
	0x49: KeyPageUp,
	0x51: KeyPageDown,
}

func lookup(code byte, extended bool) (KeyCode, bool) {
	if extended {
		key, ok := set1Extended[code]
		return key, ok
	}
	if int(code) >= len(set1) {
		return KeyUnknown, false
	}
	key := set1[code]
	return key, key != KeyUnknown
}
