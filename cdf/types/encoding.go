package types

import (
	"encoding/binary"
	"fmt"
)

// Encoding is the CDR data encoding code. It only governs the byte order
// of data values: record header fields are always big-endian.
type Encoding int32

const (
	EncodingNetwork   Encoding = 1
	EncodingSun       Encoding = 2
	EncodingVAX       Encoding = 3
	EncodingDECStatn  Encoding = 4
	EncodingSGi       Encoding = 5
	EncodingIBMPC     Encoding = 6
	EncodingIBMRS     Encoding = 7
	EncodingMac       Encoding = 9
	EncodingHP        Encoding = 11
	EncodingNeXT      Encoding = 12
	EncodingAlphaOSF1 Encoding = 13
	EncodingAlphaVMSd Encoding = 14
	EncodingAlphaVMSg Encoding = 15
	EncodingAlphaVMSi Encoding = 16
	EncodingARMLittle Encoding = 17
	EncodingARMBig    Encoding = 18
)

// ByteOrder maps an encoding to the byte order of its data values.
// VAX floating point encodings are not supported.
func (e Encoding) ByteOrder() (binary.ByteOrder, error) {
	switch e {
	case EncodingDECStatn, EncodingIBMPC, EncodingAlphaOSF1, EncodingAlphaVMSi,
		EncodingARMLittle:
		return binary.LittleEndian, nil
	case EncodingNetwork, EncodingSun, EncodingSGi, EncodingIBMRS, EncodingMac,
		EncodingHP, EncodingNeXT, EncodingARMBig:
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnsupportedEncoding, int32(e))
}

var encodingNames = map[Encoding]string{
	EncodingNetwork:   "network",
	EncodingSun:       "sun",
	EncodingVAX:       "vax",
	EncodingDECStatn:  "decstation",
	EncodingSGi:       "sgi",
	EncodingIBMPC:     "ibmpc",
	EncodingIBMRS:     "ibmrs",
	EncodingMac:       "mac",
	EncodingHP:        "hp",
	EncodingNeXT:      "next",
	EncodingAlphaOSF1: "alphaosf1",
	EncodingAlphaVMSd: "alphavmsd",
	EncodingAlphaVMSg: "alphavmsg",
	EncodingAlphaVMSi: "alphavmsi",
	EncodingARMLittle: "arm_little",
	EncodingARMBig:    "arm_big",
}

func (e Encoding) String() string {
	if name, has := encodingNames[e]; has {
		return name
	}
	return fmt.Sprintf("encoding(%d)", int32(e))
}

// ParseEncoding accepts the names returned by Encoding.String for the
// encodings that have a byte order.
func ParseEncoding(s string) (Encoding, error) {
	for e, name := range encodingNames {
		if name != s {
			continue
		}
		if _, err := e.ByteOrder(); err != nil {
			return 0, err
		}
		return e, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, s)
}
