package providers

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// AudioDuration decodes the duration of an audio file from its
// container metadata without decoding the audio itself. MP3 durations
// are estimated from the first frame's bitrate, so variable-bitrate
// files are approximate.
func AudioDuration(mimeType string, data []byte) (time.Duration, error) {
	switch mimeType {
	case "audio/wav":
		return wavDuration(data)
	case "audio/aiff":
		return aiffDuration(data)
	case "audio/flac":
		return flacDuration(data)
	case "audio/ogg":
		return oggDuration(data)
	case "audio/mp3":
		return mp3Duration(data)
	case "audio/aac":
		return adtsDuration(data)
	}
	return 0, fmt.Errorf("no duration decoder for %s", mimeType)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// wavDuration reads the RIFF fmt and data chunks: data bytes divided by
// the fmt chunk's byte rate.
func wavDuration(data []byte) (time.Duration, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var byteRate uint32
	var dataSize uint32
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if body+12 > len(data) {
				return 0, fmt.Errorf("truncated fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			dataSize = chunkSize
		}

		// Chunks are word-aligned.
		offset = body + int(chunkSize)
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if byteRate == 0 || dataSize == 0 {
		return 0, fmt.Errorf("missing fmt or data chunk")
	}
	return secondsToDuration(float64(dataSize) / float64(byteRate)), nil
}

// aiffDuration reads the COMM chunk: sample frames divided by the
// 80-bit extended-float sample rate.
func aiffDuration(data []byte) (time.Duration, error) {
	if len(data) < 12 || string(data[0:4]) != "FORM" {
		return 0, fmt.Errorf("not an AIFF file")
	}
	form := string(data[8:12])
	if form != "AIFF" && form != "AIFC" {
		return 0, fmt.Errorf("not an AIFF file")
	}

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := binary.BigEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8

		if chunkID == "COMM" {
			if body+18 > len(data) {
				return 0, fmt.Errorf("truncated COMM chunk")
			}
			sampleFrames := binary.BigEndian.Uint32(data[body+2 : body+6])
			sampleRate := float80(data[body+8 : body+18])
			if sampleRate <= 0 {
				return 0, fmt.Errorf("invalid sample rate")
			}
			return secondsToDuration(float64(sampleFrames) / sampleRate), nil
		}

		offset = body + int(chunkSize)
		if chunkSize%2 == 1 {
			offset++
		}
	}
	return 0, fmt.Errorf("missing COMM chunk")
}

// float80 decodes the 10-byte IEEE 754 extended float AIFF uses for
// sample rates.
func float80(b []byte) float64 {
	exponent := int(binary.BigEndian.Uint16(b[0:2]) & 0x7FFF)
	mantissa := binary.BigEndian.Uint64(b[2:10])
	if exponent == 0 && mantissa == 0 {
		return 0
	}
	sign := 1.0
	if b[0]&0x80 != 0 {
		sign = -1.0
	}
	return sign * float64(mantissa) * math.Pow(2, float64(exponent-16383-63))
}

// flacDuration reads the mandatory STREAMINFO block: total samples
// divided by sample rate.
func flacDuration(data []byte) (time.Duration, error) {
	if len(data) < 42 || string(data[0:4]) != "fLaC" {
		return 0, fmt.Errorf("not a FLAC file")
	}

	// STREAMINFO is always the first metadata block; its body starts at
	// byte 8. Sample rate is 20 bits at body offset 10, total samples is
	// the 36 bits that follow the channel/bit-depth fields.
	body := data[8:]
	sampleRate := uint32(body[10])<<12 | uint32(body[11])<<4 | uint32(body[12])>>4
	totalSamples := uint64(body[13]&0x0F)<<32 |
		uint64(body[14])<<24 | uint64(body[15])<<16 | uint64(body[16])<<8 | uint64(body[17])

	if sampleRate == 0 {
		return 0, fmt.Errorf("invalid sample rate")
	}
	return secondsToDuration(float64(totalSamples) / float64(sampleRate)), nil
}

// oggDuration reads the identification header for the sample rate and
// the final page's granule position for the total sample count.
func oggDuration(data []byte) (time.Duration, error) {
	if len(data) < 58 || string(data[0:4]) != "OggS" {
		return 0, fmt.Errorf("not an Ogg file")
	}

	var sampleRate uint32
	if idx := bytes.Index(data, []byte("\x01vorbis")); idx >= 0 && idx+16 <= len(data) {
		sampleRate = binary.LittleEndian.Uint32(data[idx+12 : idx+16])
	} else if idx := bytes.Index(data, []byte("OpusHead")); idx >= 0 {
		// Opus granule positions are always expressed at 48 kHz.
		sampleRate = 48000
	}
	if sampleRate == 0 {
		return 0, fmt.Errorf("unrecognized Ogg codec")
	}

	// The last page's granule position is the stream's total samples.
	var granule uint64
	for offset := 0; offset+14 <= len(data); {
		idx := bytes.Index(data[offset:], []byte("OggS"))
		if idx < 0 {
			break
		}
		pos := offset + idx
		if pos+14 <= len(data) {
			granule = binary.LittleEndian.Uint64(data[pos+6 : pos+14])
		}
		offset = pos + 4
	}

	return secondsToDuration(float64(granule) / float64(sampleRate)), nil
}

// mp3Duration estimates duration from the first frame header's bitrate.
func mp3Duration(data []byte) (time.Duration, error) {
	offset := 0

	// Skip an ID3v2 tag if present.
	if len(data) > 10 && string(data[0:3]) == "ID3" {
		size := int(data[6]&0x7F)<<21 | int(data[7]&0x7F)<<14 | int(data[8]&0x7F)<<7 | int(data[9]&0x7F)
		offset = 10 + size
	}

	for ; offset+4 <= len(data); offset++ {
		if data[offset] == 0xFF && data[offset+1]&0xE0 == 0xE0 {
			break
		}
	}
	if offset+4 > len(data) {
		return 0, fmt.Errorf("no MPEG frame sync found")
	}

	header := data[offset : offset+4]
	versionBits := (header[1] >> 3) & 0x03
	layerBits := (header[1] >> 1) & 0x03
	bitrateIndex := (header[2] >> 4) & 0x0F

	// MPEG-1 Layer III bitrate table, kbit/s. Other layers and versions
	// are close enough for a ceiling check on a 9.5 hour limit.
	bitrates := [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	if versionBits == 0x00 || layerBits != 0x01 {
		bitrates = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}
	}
	bitrate := bitrates[bitrateIndex]
	if bitrate == 0 {
		return 0, fmt.Errorf("invalid MPEG bitrate")
	}

	audioBytes := len(data) - offset
	return secondsToDuration(float64(audioBytes) * 8 / float64(bitrate*1000)), nil
}

// adtsDuration walks ADTS frames: each frame carries 1024 samples.
func adtsDuration(data []byte) (time.Duration, error) {
	sampleRates := [16]int{
		96000, 88200, 64000, 48000, 44100, 32000,
		24000, 22050, 16000, 12000, 11025, 8000, 7350, 0, 0, 0,
	}

	offset := 0
	frames := 0
	sampleRate := 0
	for offset+7 <= len(data) {
		if data[offset] != 0xFF || data[offset+1]&0xF0 != 0xF0 {
			return 0, fmt.Errorf("lost ADTS frame sync at byte %d", offset)
		}
		if sampleRate == 0 {
			sampleRate = sampleRates[(data[offset+2]>>2)&0x0F]
			if sampleRate == 0 {
				return 0, fmt.Errorf("invalid ADTS sample rate")
			}
		}
		frameLen := int(data[offset+3]&0x03)<<11 | int(data[offset+4])<<3 | int(data[offset+5])>>5
		if frameLen < 7 {
			return 0, fmt.Errorf("invalid ADTS frame length")
		}
		frames++
		offset += frameLen
	}

	if frames == 0 || sampleRate == 0 {
		return 0, fmt.Errorf("no ADTS frames found")
	}
	return secondsToDuration(float64(frames) * 1024 / float64(sampleRate)), nil
}
