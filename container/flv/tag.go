package flv

import (
	"fmt"

	"github.com/zijiren233/livepush/av"
)

type mediaTag struct {
	// SoundFormat: UB[4], 2 = MP3, 10 = AAC, 0 = Linear PCM
	soundFormat uint8

	// SoundRate: UB[2], 0 = 5.5kHz 1 = 11kHz 2 = 22kHz 3 = 44kHz (AAC: always 3)
	soundRate uint8

	// SoundSize: UB[1], 0 = 8-bit 1 = 16-bit samples
	soundSize uint8

	// SoundType: UB[1], 0 = mono 1 = stereo (AAC: always 1)
	soundType uint8

	// 0 = AAC sequence header, 1 = AAC raw
	aacPacketType uint8

	// 1 = keyframe (AVC: seekable), 2 = inter frame, 3 = disposable (H.263)
	frameType uint8

	// 1 = JPEG, 7 = AVC
	codecID uint8

	// 0 = AVC sequence header, 1 = AVC NALU, 2 = AVC end of sequence
	avcPacketType uint8

	compositionTime int32
}

// Tag is a parsed FLV audio/video tag descriptor. The push path only
// builds descriptors (mux.go); parsing serves the FLV file reader and the
// round-trip tests.
type Tag struct {
	mediat mediaTag
}

func (tag *Tag) SoundFormat() uint8 {
	return tag.mediat.soundFormat
}

func (tag *Tag) AACPacketType() uint8 {
	return tag.mediat.aacPacketType
}

func (tag *Tag) IsKeyFrame() bool {
	return tag.mediat.frameType == av.FRAME_KEY
}

func (tag *Tag) IsSeq() bool {
	return tag.mediat.frameType == av.FRAME_KEY &&
		tag.mediat.avcPacketType == av.AVC_SEQHDR
}

func (tag *Tag) CodecID() uint8 {
	return tag.mediat.codecID
}

func (tag *Tag) CompositionTime() int32 {
	return tag.mediat.compositionTime
}

// ParseMediaTagHeader parses an audio or video tag descriptor and returns
// the number of descriptor bytes ahead of the payload.
func (tag *Tag) ParseMediaTagHeader(b []byte, isVideo bool) (n int, err error) {
	if isVideo {
		return tag.parseVideoHeader(b)
	}
	return tag.parseAudioHeader(b)
}

var (
	ErrInvalidAudioData = fmt.Errorf("invalid audio data")
	ErrInvalidVideoData = fmt.Errorf("invalid video data")
)

func (tag *Tag) parseAudioHeader(b []byte) (n int, err error) {
	if len(b) < 1 {
		return 0, ErrInvalidAudioData
	}
	flags := b[0]
	tag.mediat.soundFormat = flags >> 4
	tag.mediat.soundRate = (flags >> 2) & 0x3
	tag.mediat.soundSize = (flags >> 1) & 0x1
	tag.mediat.soundType = flags & 0x1
	n++
	if tag.mediat.soundFormat == av.SOUND_AAC {
		if len(b) < 2 {
			return 1, ErrInvalidAudioData
		}
		tag.mediat.aacPacketType = b[1]
		n++
	}
	return
}

func (tag *Tag) parseVideoHeader(b []byte) (n int, err error) {
	if len(b) < 1 {
		return 0, ErrInvalidVideoData
	}
	flags := b[0]
	tag.mediat.frameType = flags >> 4
	tag.mediat.codecID = flags & 0x0f
	n++
	if tag.mediat.frameType == av.FRAME_INTER || tag.mediat.frameType == av.FRAME_KEY {
		if tag.mediat.codecID == av.CODEC_AVC {
			if len(b) < 5 {
				return 1, ErrInvalidVideoData
			}
			tag.mediat.avcPacketType = b[1]
			n++
			for _, v := range b[2:5] {
				tag.mediat.compositionTime = tag.mediat.compositionTime<<8 + int32(v)
				n++
			}
		}
	}
	return
}
