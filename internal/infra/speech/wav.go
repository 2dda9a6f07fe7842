package speech

import (
	"encoding/binary"
	"fmt"
)

// DecodeWAV extracts mono 16-bit PCM samples from a RIFF/WAVE file. Stereo
// input is downmixed.
func DecodeWAV(data []byte) ([]int16, float64, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var (
		sampleRate    uint32
		channels      uint16
		bitsPerSample uint16
		pcm           []byte
	)

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := data[pos+8:]
		// espeak-ng writes 0xFFFFFFFF sizes when streaming to a pipe.
		if chunkSize < 0 || chunkSize > len(body) {
			chunkSize = len(body)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, fmt.Errorf("short fmt chunk")
			}
			if format := binary.LittleEndian.Uint16(body[0:2]); format != 1 {
				return nil, 0, fmt.Errorf("unsupported WAV format %d", format)
			}
			channels = binary.LittleEndian.Uint16(body[2:4])
			sampleRate = binary.LittleEndian.Uint32(body[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
		case "data":
			pcm = body[:chunkSize]
		}

		pos += 8 + chunkSize
		if pos%2 != 0 {
			pos++
		}
	}

	if sampleRate == 0 || pcm == nil {
		return nil, 0, fmt.Errorf("missing fmt or data chunk")
	}
	if bitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bits per sample %d", bitsPerSample)
	}
	if channels == 0 {
		channels = 1
	}

	frameSize := 2 * int(channels)
	frames := len(pcm) / frameSize
	samples := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for ch := 0; ch < int(channels); ch++ {
			off := i*frameSize + ch*2
			sum += int(int16(binary.LittleEndian.Uint16(pcm[off : off+2])))
		}
		samples[i] = int16(sum / int(channels))
	}

	return samples, float64(sampleRate), nil
}
