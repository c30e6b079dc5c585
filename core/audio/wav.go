package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

var errNotWAV = errors.New("not a PCM WAV payload")

// WAVDuration reads the length of a RIFF/WAVE payload from its fmt and data chunks.
func WAVDuration(data []byte) (float64, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return 0, errNotWAV
	}
	var byteRate uint32
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		switch id {
		case "fmt ":
			if body+12 > len(data) {
				return 0, errNotWAV
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, errNotWAV
			}
			size = min(size, len(data)-body)
			return float64(size) / float64(byteRate), nil
		}
		off = body + size + size%2
	}
	return 0, errNotWAV
}

// SineWAV renders a mono 16-bit PCM tone.
func SineWAV(freq float64, seconds float64, sampleRate int) []byte {
	samples := int(seconds * float64(sampleRate))
	dataSize := samples * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))

	for i := 0; i < samples; i++ {
		t := float64(i) / float64(sampleRate)
		// short fade at both ends avoids clicks
		gain := math.Min(1, math.Min(t, seconds-t)*20)
		v := int16(math.Sin(2*math.Pi*freq*t) * 0.3 * gain * math.MaxInt16)
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}
