package padapi

import (
	"encoding/binary"
	"io"
	"math"
)

// Button bits follow the XInput wButtons layout.
const (
	buttonDPadUp    = 0x0001
	buttonDPadDown  = 0x0002
	buttonDPadLeft  = 0x0004
	buttonDPadRight = 0x0008
	buttonStart     = 0x0010
	buttonBack      = 0x0020
	buttonLS        = 0x0040
	buttonRS        = 0x0080
	buttonLB        = 0x0100
	buttonRB        = 0x0200
	buttonGuide     = 0x0400
	buttonA         = 0x1000
	buttonB         = 0x2000
	buttonX         = 0x4000
	buttonY         = 0x8000
)

// ReportSize is the size of an encoded input report in bytes.
const ReportSize = 12

// RumbleReportSize is the size of a motor-strength output report in bytes.
const RumbleReportSize = 2

// Descriptor returns the HID report descriptor for the virtual gamepad:
// 16 buttons, two 8-bit triggers (Z/Rz), four 16-bit stick axes
// (X/Y/Rx/Ry) and a 2-byte vendor output report carrying motor strengths.
func Descriptor() []byte {
	return []byte{
		0x05, 0x01, // Usage Page (Generic Desktop)
		0x09, 0x05, // Usage (Game Pad)
		0xa1, 0x01, // Collection (Application)
		0x05, 0x09, //   Usage Page (Button)
		0x19, 0x01, //   Usage Minimum (1)
		0x29, 0x10, //   Usage Maximum (16)
		0x15, 0x00, //   Logical Minimum (0)
		0x25, 0x01, //   Logical Maximum (1)
		0x75, 0x01, //   Report Size (1)
		0x95, 0x10, //   Report Count (16)
		0x81, 0x02, //   Input (Data,Var,Abs)
		0x05, 0x01, //   Usage Page (Generic Desktop)
		0x09, 0x32, //   Usage (Z)
		0x09, 0x35, //   Usage (Rz)
		0x15, 0x00, //   Logical Minimum (0)
		0x26, 0xff, 0x00, // Logical Maximum (255)
		0x75, 0x08, //   Report Size (8)
		0x95, 0x02, //   Report Count (2)
		0x81, 0x02, //   Input (Data,Var,Abs)
		0x09, 0x30, //   Usage (X)
		0x09, 0x31, //   Usage (Y)
		0x09, 0x33, //   Usage (Rx)
		0x09, 0x34, //   Usage (Ry)
		0x16, 0x00, 0x80, // Logical Minimum (-32768)
		0x26, 0xff, 0x7f, // Logical Maximum (32767)
		0x75, 0x10, //   Report Size (16)
		0x95, 0x04, //   Report Count (4)
		0x81, 0x02, //   Input (Data,Var,Abs)
		0x06, 0x00, 0xff, // Usage Page (Vendor)
		0x09, 0x01, //   Usage (1)
		0x15, 0x00, //   Logical Minimum (0)
		0x26, 0xff, 0x00, // Logical Maximum (255)
		0x75, 0x08, //   Report Size (8)
		0x95, 0x02, //   Report Count (2)
		0x91, 0x02, //   Output (Data,Var,Abs)
		0xc0, // End Collection
	}
}

// EncodeReport encodes a state snapshot into the 12-byte input report
// matching Descriptor: buttons u16 | lt u8 | rt u8 | lx i16 | ly i16 |
// rx i16 | ry i16, all little-endian.
func EncodeReport(s State) []byte {
	var buttons uint16
	set := func(active bool, bit uint16) {
		if active {
			buttons |= bit
		}
	}
	set(s.A, buttonA)
	set(s.B, buttonB)
	set(s.X, buttonX)
	set(s.Y, buttonY)
	set(s.LB, buttonLB)
	set(s.RB, buttonRB)
	set(s.Back, buttonBack)
	set(s.Start, buttonStart)
	set(s.Guide, buttonGuide)
	set(s.LS, buttonLS)
	set(s.RS, buttonRS)
	set(s.DPadUp, buttonDPadUp)
	set(s.DPadDown, buttonDPadDown)
	set(s.DPadLeft, buttonDPadLeft)
	set(s.DPadRight, buttonDPadRight)

	b := make([]byte, ReportSize)
	binary.LittleEndian.PutUint16(b[0:2], buttons)
	b[2] = triggerByte(s.LeftTrigger)
	b[3] = triggerByte(s.RightTrigger)
	binary.LittleEndian.PutUint16(b[4:6], uint16(axisInt16(s.LeftStickX)))
	binary.LittleEndian.PutUint16(b[6:8], uint16(axisInt16(s.LeftStickY)))
	binary.LittleEndian.PutUint16(b[8:10], uint16(axisInt16(s.RightStickX)))
	binary.LittleEndian.PutUint16(b[10:12], uint16(axisInt16(s.RightStickY)))
	return b
}

// DecodeRumble decodes a 2-byte motor-strength output report.
func DecodeRumble(data []byte) (Rumble, error) {
	if len(data) < RumbleReportSize {
		return Rumble{}, io.ErrUnexpectedEOF
	}
	return Rumble{
		Large: float64(data[0]) / 255,
		Small: float64(data[1]) / 255,
	}, nil
}

func axisInt16(v float64) int16 {
	d := (clamp01(v) - 0.5) * 2
	return int16(math.Round(d * math.MaxInt16))
}

func triggerByte(v float64) byte {
	return byte(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
