package protocol

import (
	"math/rand"
	"testing"
)

// bitwiseCRC16 is a textbook MSB-first CRC-16 (poly 0x1021, init 0xFFFF).
func bitwiseCRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func TestCRC16(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name:     "empty data",
			data:     []byte{},
			expected: 0xFFFF,
		},
		{
			name:     "single zero byte",
			data:     []byte{0x00},
			expected: 0xE1F0,
		},
		{
			name:     "check string",
			data:     []byte("123456789"),
			expected: 0x29B1,
		},
		{
			name:     "ack header seq 1",
			data:     []byte{0x34, 0x00},
			expected: 0xD45E,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CRC16(tt.data)
			if result != tt.expected {
				t.Errorf("CRC16() = 0x%04X, want 0x%04X", result, tt.expected)
			}
		})
	}
}

func TestCRC16MatchesBitwise(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		data := make([]byte, rng.Intn(TransferSize))
		rng.Read(data)
		if got, want := CRC16(data), bitwiseCRC16(data); got != want {
			t.Fatalf("CRC16(% X) = 0x%04X, bitwise = 0x%04X", data, got, want)
		}
	}
}

func TestUpdateCRC16Running(t *testing.T) {
	data := []byte("split across two updates")
	crc := UpdateCRC16(CRC16InitialValue, data[:7])
	crc = UpdateCRC16(crc, data[7:])
	if want := CRC16(data); crc != want {
		t.Errorf("running CRC = 0x%04X, want 0x%04X", crc, want)
	}
}

func TestVerifyCRC(t *testing.T) {
	frame := []byte{0x34, 0x00, 0xD4, 0x5E}
	if !VerifyCRC(frame) {
		t.Error("VerifyCRC() = false for a valid frame")
	}

	for bit := 0; bit < len(frame)*8; bit++ {
		corrupt := append([]byte(nil), frame...)
		corrupt[bit/8] ^= 1 << (bit % 8)
		if VerifyCRC(corrupt) {
			t.Errorf("VerifyCRC() accepted frame with bit %d flipped", bit)
		}
	}

	if VerifyCRC([]byte{0x01}) {
		t.Error("VerifyCRC() accepted a one byte frame")
	}
}

func BenchmarkCRC16(b *testing.B) {
	data := make([]byte, TransferSize)
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		CRC16(data)
	}
}
