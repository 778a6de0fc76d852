package padapi

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeReportRestingState(t *testing.T) {
	b := EncodeReport(NewState())
	require.Len(t, b, ReportSize)

	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(b[0:2]))
	assert.Equal(t, byte(0), b[2])
	assert.Equal(t, byte(0), b[3])
	for offset := 4; offset < 12; offset += 2 {
		assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(b[offset:])))
	}
}

func TestEncodeReportButtons(t *testing.T) {
	s := NewState()
	s.A = true
	s.DPadUp = true
	s.Guide = true

	b := EncodeReport(s)
	assert.Equal(t, uint16(0x1401), binary.LittleEndian.Uint16(b[0:2]))
}

func TestEncodeReportAnalog(t *testing.T) {
	s := NewState()
	s.LeftStickX = 1
	s.LeftStickY = 0
	s.LeftTrigger = 1
	s.RightTrigger = 0.5

	b := EncodeReport(s)
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(b[4:6])))
	assert.Equal(t, int16(-32767), int16(binary.LittleEndian.Uint16(b[6:8])))
	assert.Equal(t, byte(255), b[2])
	assert.Equal(t, byte(128), b[3])
}

func TestEncodeReportClampsOutOfRange(t *testing.T) {
	s := NewState()
	s.LeftStickX = 1.5
	s.LeftTrigger = -0.2

	b := EncodeReport(s)
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(b[4:6])))
	assert.Equal(t, byte(0), b[2])
}

func TestDecodeRumble(t *testing.T) {
	r, err := DecodeRumble([]byte{0xff, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.Large)
	assert.Equal(t, 0.0, r.Small)

	_, err = DecodeRumble([]byte{0x10})
	assert.Error(t, err)
}

func TestVirtualOutputNames(t *testing.T) {
	for _, output := range Outputs() {
		parsed, err := ParseVirtualOutput(output.String())
		require.NoError(t, err)
		assert.Equal(t, output, parsed)
	}
	_, err := ParseVirtualOutput("bogus")
	assert.Error(t, err)

	assert.Equal(t, OutputKindButton, OutputA.Kind())
	assert.Equal(t, OutputKindAxis, OutputLeftStickX.Kind())
	assert.Equal(t, OutputKindTrigger, OutputRightTrigger.Kind())
}
