package push

import (
	"bytes"

	"github.com/zijiren233/livepush/av"
	"github.com/zijiren233/livepush/protocol/amf"
)

// metaDataBody builds the onMetaData script tag announcing the stream's
// track properties. Sent once, right after publish succeeds; the transport
// layer prepends @setDataFrame on the wire.
func metaDataBody(audio *av.AudioInfo, video *av.VideoInfo) ([]byte, error) {
	obj := make(amf.Object)
	obj["duration"] = float64(0)

	if video.Codec != av.VideoCodecNone {
		codecID, _ := video.Codec.FlvCodecID()
		obj["width"] = float64(video.Width)
		obj["height"] = float64(video.Height)
		obj["framerate"] = float64(video.FPS)
		obj["videocodecid"] = float64(codecID)
	}

	if audio.Codec != av.AudioCodecNone {
		format, _ := audio.Codec.FlvSoundFormat()
		obj["audiocodecid"] = float64(format)
		obj["audiosamplerate"] = float64(audio.SampleRate)
		obj["audiosamplesize"] = float64(audio.BitsPerSample)
		obj["audiochannels"] = float64(audio.Channels)
		obj["stereo"] = audio.Channels >= 2
	}

	buf := bytes.NewBuffer(nil)
	enc := &amf.Encoder{}
	if _, err := enc.EncodeBatch(buf, amf.AMF0, "onMetaData", obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
