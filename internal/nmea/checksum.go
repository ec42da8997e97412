package nmea

import "fmt"

// Checksum XORs every byte of payload (the text between '$' and '*') and
// renders the result as two uppercase hex digits.
func Checksum(payload string) string {
	return fmt.Sprintf("%02X", checksumByte(payload))
}

func checksumByte(payload string) byte {
	var cs byte
	for i := 0; i < len(payload); i++ {
		cs ^= payload[i]
	}
	return cs
}
