package serialir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// checksum returns the CRC-16/XMODEM of a line payload.
func checksum(payload string) uint16 {
	return crc16.Checksum([]byte(payload), crcTable)
}

// encodeLine joins words into a payload and appends its checksum.
func encodeLine(words []string) string {
	payload := strings.Join(words, " ")
	return fmt.Sprintf("%s*%04X\n", payload, checksum(payload))
}

// decodeLine verifies the checksum of a received line and returns its
// payload.
func decodeLine(line string) (string, error) {
	line = strings.TrimRight(line, "\r\n")

	i := strings.LastIndexByte(line, '*')
	if i < 0 {
		return "", fmt.Errorf("%w: missing checksum", ErrChecksum)
	}
	payload, sum := line[:i], line[i+1:]

	want, err := strconv.ParseUint(sum, 16, 16)
	if err != nil {
		return "", fmt.Errorf("%w: invalid checksum %q", ErrChecksum, sum)
	}
	if got := checksum(payload); got != uint16(want) {
		return "", fmt.Errorf("%w: got %04X, line says %04X", ErrChecksum, got, want)
	}
	return payload, nil
}
