package max30100

// Register addresses
const (
	IntStatus  = 0x00
	IntEnable  = 0x01
	FIFOWrPtr  = 0x02
	OvfCounter = 0x03
	FIFORdPtr  = 0x04
	FIFOData   = 0x05
	ModeCfg    = 0x06
	SpO2Cfg    = 0x07
	LedCfg     = 0x09
	TempInt    = 0x16
	TempFrac   = 0x17
	RegRevID   = 0xFE
	RegPartID  = 0xFF
)

// Device constants
const (
	Addr   = 0x57
	PartID = 0x11

	fifoDepth   = 16
	sampleBytes = 4
)

// Mode configuration
const (
	ModeHR   byte = 0b010
	ModeSpO2 byte = 0b011
	modeMask byte = 0b1111_1000

	TempEna      byte = 0b0000_1000
	ResetControl byte = 0b0100_0000
	shdnControl  byte = 0b1000_0000
)

// SpO2 configuration
const (
	HiResEna byte = 0b0100_0000

	srMask byte = 0b1110_0011
	pwMask byte = 0b1111_1100
)

// Sample Rate Control (samples per second)
const (
	SR50 = (iota << 2)
	SR100
	SR167
	SR200
	SR400
	SR600
	SR800
	SR1000
)

// LED Pulse Width Control (microseconds)
const (
	PW200 = iota
	PW400
	PW800
	PW1600
)

var srCode = map[int]byte{
	50:   SR50,
	100:  SR100,
	167:  SR167,
	200:  SR200,
	400:  SR400,
	600:  SR600,
	800:  SR800,
	1000: SR1000,
}

var pwCode = map[int]byte{
	200:  PW200,
	400:  PW400,
	800:  PW800,
	1600: PW1600,
}

// ledCurrents maps the 16 LED drive steps to their nominal current in mA.
var ledCurrents = []float64{
	0, 4.4, 7.6, 11.0, 14.2, 17.4, 20.8, 24.0,
	27.1, 30.6, 33.8, 37.0, 40.2, 43.6, 46.8, 50.0,
}
