// Package audio provides the small amount of PCM arithmetic and WAV framing
// the transcription adapters need. All helpers assume 16-bit signed
// little-endian linear PCM, which is the only format the service accepts.
package audio

import "encoding/binary"

// BitsPerSample is fixed at 16 for the linear PCM audio handled by the service.
const BitsPerSample = 16

// wavHeaderSize is the size of the RIFF/WAV header produced by EncodeWAV.
const wavHeaderSize = 44

// BytesPerSecond returns the number of PCM bytes that make up one second of
// audio at the given sample rate and channel count. Returns 0 for invalid
// inputs.
func BytesPerSecond(sampleRate, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return sampleRate * channels * (BitsPerSample / 8)
}

// DurationMs returns the duration of a PCM buffer in milliseconds. Returns 0
// for invalid inputs.
func DurationMs(pcm []byte, sampleRate, channels int) int {
	bps := BytesPerSecond(sampleRate, channels)
	if bps == 0 {
		return 0
	}
	return len(pcm) * 1000 / bps
}

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// 44-byte RIFF/WAV container describing the format, channel count, sample
// rate, bit depth, and byte counts. The returned slice is a fresh allocation;
// pcm is not retained.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * BitsPerSample / 8
	blockAlign := channels * BitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, wavHeaderSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)      // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
