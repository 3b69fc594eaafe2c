package flv

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/zijiren233/livepush/av"
	"github.com/zijiren233/livepush/utils/pio"
)

var (
	ErrNoSpecInfo  = errors.New("codec spec info missing")
	ErrBadSpecInfo = errors.New("codec spec info malformed")
)

// Muxer wraps encoded frames into FLV-style tag bodies, the payload format
// of RTMP audio/video messages. It is configured once from the track infos
// and owns copies of the codec configuration blobs.
type Muxer struct {
	audio av.AudioInfo
	video av.VideoInfo

	audioDesc byte
	videoDesc byte
}

func NewMuxer(audio av.AudioInfo, video av.VideoInfo) (*Muxer, error) {
	m := &Muxer{audio: audio, video: video}
	m.audio.SpecInfo = append([]byte(nil), audio.SpecInfo...)
	m.video.SpecInfo = append([]byte(nil), video.SpecInfo...)

	if audio.Codec != av.AudioCodecNone {
		format, ok := audio.Codec.FlvSoundFormat()
		if !ok {
			return nil, fmt.Errorf("audio codec %s: no flv mapping", audio.Codec)
		}
		m.audioDesc = format<<4 | soundRate(audio)<<2 | soundSize(audio)<<1 | soundType(audio)
	}
	if video.Codec != av.VideoCodecNone {
		codecID, ok := video.Codec.FlvCodecID()
		if !ok {
			return nil, fmt.Errorf("video codec %s: no flv mapping", video.Codec)
		}
		m.videoDesc = codecID
	}
	return m, nil
}

func soundRate(info av.AudioInfo) byte {
	if info.Codec == av.AudioCodecAAC {
		return av.SOUND_44Khz
	}
	switch {
	case info.SampleRate >= 44100:
		return av.SOUND_44Khz
	case info.SampleRate >= 22050:
		return av.SOUND_22Khz
	case info.SampleRate >= 11025:
		return av.SOUND_11Khz
	default:
		return av.SOUND_5_5Khz
	}
}

func soundSize(info av.AudioInfo) byte {
	if info.Codec == av.AudioCodecAAC || info.BitsPerSample == 16 {
		return av.SOUND_16BIT
	}
	return av.SOUND_8BIT
}

func soundType(info av.AudioInfo) byte {
	if info.Codec == av.AudioCodecAAC || info.Channels >= 2 {
		return av.SOUND_STEREO
	}
	return av.SOUND_MONO
}

// AudioSequenceHeader builds the one-time configuration tag body, or nil
// when the codec needs none (MP3, PCM).
func (m *Muxer) AudioSequenceHeader() ([]byte, error) {
	if m.audio.Codec != av.AudioCodecAAC {
		return nil, nil
	}
	if len(m.audio.SpecInfo) == 0 {
		return nil, ErrNoSpecInfo
	}
	b := make([]byte, 0, 2+len(m.audio.SpecInfo))
	b = append(b, m.audioDesc, av.AAC_SEQHDR)
	b = append(b, m.audio.SpecInfo...)
	return b, nil
}

// VideoSequenceHeader builds the one-time configuration tag body, or nil
// when the codec needs none (MJPEG).
func (m *Muxer) VideoSequenceHeader() ([]byte, error) {
	if m.video.Codec != av.VideoCodecH264 {
		return nil, nil
	}
	record, err := avcConfigurationRecord(m.video.SpecInfo)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, 5+len(record))
	b = append(b, av.FRAME_KEY<<4|m.videoDesc, av.AVC_SEQHDR, 0, 0, 0)
	b = append(b, record...)
	return b, nil
}

// MuxAudio wraps one audio frame. The frame data is copied, the caller
// keeps its buffer.
func (m *Muxer) MuxAudio(frame *av.AudioFrame) ([]byte, error) {
	if m.audio.Codec == av.AudioCodecNone {
		return nil, fmt.Errorf("audio track not configured")
	}
	headerLen := 1
	if m.audio.Codec == av.AudioCodecAAC {
		headerLen = 2
	}
	b := make([]byte, 0, headerLen+len(frame.Data))
	b = append(b, m.audioDesc)
	if m.audio.Codec == av.AudioCodecAAC {
		b = append(b, av.AAC_RAW)
	}
	b = append(b, frame.Data...)
	return b, nil
}

// MuxVideo wraps one video frame. H264 payloads are carried AVCC style:
// annex-B input is converted to length-prefixed NAL units, input without
// start codes is assumed to be AVCC already and copied through.
func (m *Muxer) MuxVideo(frame *av.VideoFrame) ([]byte, error) {
	if m.video.Codec == av.VideoCodecNone {
		return nil, fmt.Errorf("video track not configured")
	}
	frameType := byte(av.FRAME_INTER)
	if frame.KeyFrame {
		frameType = av.FRAME_KEY
	}

	if m.video.Codec == av.VideoCodecMJPEG {
		b := make([]byte, 0, 1+len(frame.Data))
		b = append(b, frameType<<4|m.videoDesc)
		b = append(b, frame.Data...)
		return b, nil
	}

	payload := frame.Data
	if nalus := splitAnnexB(payload); nalus != nil {
		payload = nil
		for _, nalu := range nalus {
			prefixed := make([]byte, 4+len(nalu))
			pio.PutU32BE(prefixed[:4], uint32(len(nalu)))
			copy(prefixed[4:], nalu)
			payload = append(payload, prefixed...)
		}
	}

	b := make([]byte, 0, 5+len(payload))
	b = append(b, frameType<<4|m.videoDesc, av.AVC_NALU, 0, 0, 0)
	b = append(b, payload...)
	return b, nil
}

// avcConfigurationRecord returns an AVCDecoderConfigurationRecord. A blob
// already in record form (leading configurationVersion 1) passes through,
// otherwise the blob is treated as annex-B SPS/PPS.
func avcConfigurationRecord(spec []byte) ([]byte, error) {
	if len(spec) == 0 {
		return nil, ErrNoSpecInfo
	}
	if spec[0] == 0x01 {
		return spec, nil
	}

	var sps, pps []byte
	for _, nalu := range splitAnnexB(spec) {
		if len(nalu) == 0 {
			continue
		}
		switch nalu[0] & 0x1f {
		case 7:
			sps = nalu
		case 8:
			pps = nalu
		}
	}
	if len(sps) < 4 || len(pps) == 0 {
		return nil, fmt.Errorf("%w: need annex-b sps and pps", ErrBadSpecInfo)
	}

	b := make([]byte, 0, 11+len(sps)+len(pps))
	b = append(b, 0x01, sps[1], sps[2], sps[3])
	b = append(b, 0xff)      // 4-byte NALU lengths
	b = append(b, 0xe0|0x01) // one SPS
	b = append(b, byte(len(sps)>>8), byte(len(sps)))
	b = append(b, sps...)
	b = append(b, 0x01) // one PPS
	b = append(b, byte(len(pps)>>8), byte(len(pps)))
	b = append(b, pps...)
	return b, nil
}

var startCode3 = []byte{0, 0, 1}

// splitAnnexB splits a buffer on 3- or 4-byte start codes. Nil means no
// start code was found at all.
func splitAnnexB(b []byte) [][]byte {
	first := bytes.Index(b, startCode3)
	if first < 0 || first > 1 {
		return nil
	}

	var nalus [][]byte
	rest := b[first+3:]
	for {
		next := bytes.Index(rest, startCode3)
		if next < 0 {
			if len(rest) > 0 {
				nalus = append(nalus, rest)
			}
			return nalus
		}
		end := next
		// a 4-byte start code owns the preceding zero byte
		if end > 0 && rest[end-1] == 0 {
			end--
		}
		if end > 0 {
			nalus = append(nalus, rest[:end])
		}
		rest = rest[next+3:]
	}
}
