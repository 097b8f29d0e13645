package max30100

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/physic"
)

// fakeBus is a register-level I2C stand-in. Reads return the register's
// current value; writes store it. With tempStuck set, writes to the mode
// register keep the temperature-enable flag latched, mimicking a part in
// shutdown that never completes a conversion.
type fakeBus struct {
	regs      map[byte]byte
	tempStuck bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{regs: make(map[byte]byte)}
}

func (b *fakeBus) String() string                 { return "fake" }
func (b *fakeBus) SetSpeed(physic.Frequency) error { return nil }

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	if len(w) == 0 {
		return nil
	}
	reg := w[0]
	if len(w) > 1 {
		v := w[1]
		if b.tempStuck && reg == ModeCfg {
			v |= TempEna
		}
		b.regs[reg] = v
		return nil
	}
	for i := range r {
		r[i] = b.regs[reg]
	}
	return nil
}

func newFakeDevice(bus *fakeBus) *Device {
	return &Device{dev: &i2c.Dev{Addr: Addr, Bus: bus}}
}

func TestParseSamples(t *testing.T) {
	raw := []byte{
		0xC3, 0x50, 0xB1, 0x22, // IR 0xC350 (50000), red 0xB122 (45346)
		0x00, 0x01, 0xFF, 0xFF,
	}

	ir, red := ParseSamples(raw)

	require.Len(t, ir, 2)
	require.Len(t, red, 2)
	assert.Equal(t, []uint16{50000, 1}, ir)
	assert.Equal(t, []uint16{45346, 65535}, red)
}

func TestParseSamples_IgnoresPartialSlot(t *testing.T) {
	raw := []byte{0x12, 0x34, 0x56, 0x78, 0xAA, 0xBB}

	ir, red := ParseSamples(raw)

	require.Len(t, ir, 1)
	assert.Equal(t, uint16(0x1234), ir[0])
	assert.Equal(t, uint16(0x5678), red[0])
}

func TestParseSamples_Empty(t *testing.T) {
	ir, red := ParseSamples(nil)
	assert.Empty(t, ir)
	assert.Empty(t, red)
}

func TestAvailable(t *testing.T) {
	tests := []struct {
		name       string
		wr, rd     byte
		ovf        byte
		want       int
	}{
		{"empty", 5, 5, 0, 0},
		{"partial", 9, 5, 0, 4},
		{"wrapped partial", 2, 14, 0, 4},
		{"full after wrap", 5, 5, 3, fifoDepth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newFakeBus()
			bus.regs[FIFOWrPtr] = tt.wr
			bus.regs[FIFORdPtr] = tt.rd
			bus.regs[OvfCounter] = tt.ovf

			n, err := newFakeDevice(bus).Available()
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestTemperature_BoundsRegisterWait(t *testing.T) {
	bus := newFakeBus()
	bus.tempStuck = true
	bus.regs[ModeCfg] = shdnControl

	// The conversion never completes; the wait must give up with an error
	// instead of spinning forever.
	_, err := newFakeDevice(bus).Temperature()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not settle")
}

func TestCurrentCode(t *testing.T) {
	tests := []struct {
		ma   float64
		code byte
		ok   bool
	}{
		{0, 0, true},
		{4.4, 1, true},
		{27.1, 8, true},
		{50.0, 15, true},
		{12.3, 0, false},
		{-1, 0, false},
		{51, 0, false},
	}

	for _, tt := range tests {
		code, ok := CurrentCode(tt.ma)
		assert.Equal(t, tt.ok, ok, "%v mA", tt.ma)
		if tt.ok {
			assert.Equal(t, tt.code, code, "%v mA", tt.ma)
		}
	}
}
