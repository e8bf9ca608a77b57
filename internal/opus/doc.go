// Package opus wraps the audio collaborators of the voice pipeline: the Opus
// codec, FFmpeg for container conversion and an Ogg demuxer for Opus files.
//
// PCM everywhere in this package is signed 16-bit little-endian, mono,
// 48 kHz. Voice frames are 10 ms, 480 samples or 960 bytes.
package opus
