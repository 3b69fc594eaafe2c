package av

// Flv Tag Header
const (
	TAG_AUDIO          = 0x08
	TAG_VIDEO          = 0x09
	TAG_SCRIPTDATAAMF0 = 0x12
	TAG_SCRIPTDATAAMF3 = 0xf
)

const (
	SOUND_LPCM                  = 0
	SOUND_MP3                   = 2
	SOUND_NELLYMOSER_16KHZ_MONO = 4
	SOUND_NELLYMOSER_8KHZ_MONO  = 5
	SOUND_NELLYMOSER            = 6
	SOUND_ALAW                  = 7
	SOUND_MULAW                 = 8
	SOUND_AAC                   = 10
	SOUND_SPEEX                 = 11

	SOUND_5_5Khz = 0
	SOUND_11Khz  = 1
	SOUND_22Khz  = 2
	SOUND_44Khz  = 3

	SOUND_8BIT  = 0
	SOUND_16BIT = 1

	SOUND_MONO   = 0
	SOUND_STEREO = 1

	AAC_SEQHDR = 0
	AAC_RAW    = 1
)

const (
	AVC_SEQHDR = 0
	AVC_NALU   = 1
	AVC_EOS    = 2
)

// Flv Video Tag Data Frame Type
const (
	FRAME_KEY   = 1
	FRAME_INTER = 2
	FRAME_DISPO = 3
)

// Flv Codec ID
const (
	CODEC_JPEG        = 1
	CODEC_SORENSON    = 2
	CODEC_SCREEN      = 3
	CODEC_ON2VP6      = 4
	CODEC_ON2VP6ALPHA = 5
	CODEC_SCREEN2     = 6
	CODEC_AVC         = 7
)

// VideoCodec identifies the video codec a pusher feeds.
type VideoCodec uint8

const (
	VideoCodecNone VideoCodec = iota
	VideoCodecH264
	VideoCodecMJPEG
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecH264:
		return "h264"
	case VideoCodecMJPEG:
		return "mjpeg"
	default:
		return "none"
	}
}

// FlvCodecID maps the codec to its FLV video tag codec id.
func (c VideoCodec) FlvCodecID() (uint8, bool) {
	switch c {
	case VideoCodecH264:
		return CODEC_AVC, true
	case VideoCodecMJPEG:
		return CODEC_JPEG, true
	default:
		return 0, false
	}
}

// AudioCodec identifies the audio codec a pusher feeds.
type AudioCodec uint8

const (
	AudioCodecNone AudioCodec = iota
	AudioCodecAAC
	AudioCodecMP3
	AudioCodecPCM
)

func (c AudioCodec) String() string {
	switch c {
	case AudioCodecAAC:
		return "aac"
	case AudioCodecMP3:
		return "mp3"
	case AudioCodecPCM:
		return "pcm"
	default:
		return "none"
	}
}

// FlvSoundFormat maps the codec to its FLV audio tag sound format.
func (c AudioCodec) FlvSoundFormat() (uint8, bool) {
	switch c {
	case AudioCodecAAC:
		return SOUND_AAC, true
	case AudioCodecMP3:
		return SOUND_MP3, true
	case AudioCodecPCM:
		return SOUND_LPCM, true
	default:
		return 0, false
	}
}

// AudioInfo describes the audio track of a push session. SpecInfo carries
// the codec configuration blob (AudioSpecificConfig for AAC) and is copied
// at the API boundary, the caller keeps ownership of its buffer.
type AudioInfo struct {
	Codec         AudioCodec
	Channels      uint8
	BitsPerSample uint8
	SampleRate    uint32
	SpecInfo      []byte
}

// Valid reports whether the info is complete enough to stream.
// AAC requires a configuration blob.
func (info *AudioInfo) Valid() bool {
	switch info.Codec {
	case AudioCodecAAC:
		return len(info.SpecInfo) > 0 && info.Channels > 0 && info.SampleRate > 0
	case AudioCodecMP3, AudioCodecPCM:
		return info.Channels > 0 && info.SampleRate > 0
	case AudioCodecNone:
		return len(info.SpecInfo) == 0
	default:
		return false
	}
}

// VideoInfo describes the video track of a push session. SpecInfo carries
// the codec configuration blob (SPS/PPS for H264, annex-B or a prebuilt
// AVC decoder configuration record) and is copied at the API boundary.
type VideoInfo struct {
	Codec    VideoCodec
	Width    uint16
	Height   uint16
	FPS      uint8
	SpecInfo []byte
}

// Valid reports whether the info is complete enough to stream.
// H264 requires SPS/PPS, MJPEG needs no configuration blob.
func (info *VideoInfo) Valid() bool {
	switch info.Codec {
	case VideoCodecH264:
		return len(info.SpecInfo) > 0 && info.Width > 0 && info.Height > 0
	case VideoCodecMJPEG:
		return len(info.SpecInfo) == 0 && info.Width > 0 && info.Height > 0
	case VideoCodecNone:
		return len(info.SpecInfo) == 0
	default:
		return false
	}
}

// AudioFrame is one encoded audio frame. Data is borrowed for the duration
// of the push call only.
type AudioFrame struct {
	PTS  uint32 // milliseconds relative to stream start
	Data []byte
}

// VideoFrame is one encoded video frame. Data is borrowed for the duration
// of the push call only.
type VideoFrame struct {
	PTS      uint32 // milliseconds relative to stream start
	KeyFrame bool
	Data     []byte
}
