package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zijiren233/livepush/av"
	"github.com/zijiren233/livepush/cmd/flags"
	"github.com/zijiren233/livepush/container/flv"
	"github.com/zijiren233/livepush/protocol/amf"
	"github.com/zijiren233/livepush/push"
)

var PushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push a flv file to an rtmp endpoint",
	Long:  `Push a flv file to an rtmp endpoint`,
	Run:   Push,
}

var manager = push.NewManager()

func Push(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		logrus.Fatal(err)
	}
	if flags.FilePath == "" || cfg.URL == "" {
		logrus.Fatal("push needs --url and --file")
	}

	if flags.StatsListen != "" {
		go serveStats(flags.StatsListen)
	}

	audio, video, err := probeFile(flags.FilePath)
	if err != nil {
		logrus.WithError(err).Fatal("probe flv file")
	}

	s, err := manager.Open(flags.FilePath, cfg)
	if err != nil {
		logrus.Fatal(err)
	}
	defer manager.Close(flags.FilePath)

	if audio != nil {
		if err := s.SetAudioInfo(audio); err != nil {
			logrus.WithError(err).Fatal("set audio info")
		}
	}
	if video != nil {
		if err := s.SetVideoInfo(video); err != nil {
			logrus.WithError(err).Fatal("set video info")
		}
	}
	if err := s.Connect(); err != nil {
		logrus.WithError(err).Fatal("connect")
	}

	for {
		if err := pushFile(s, flags.FilePath); err != nil {
			logrus.WithError(err).Fatal("push")
		}
		if !flags.Loop {
			return
		}
	}
}

// pushFile replays the file's media tags in real time, pacing by tag
// timestamp against the wall clock. Sequence headers and script tags are
// skipped, the session already announced its own.
func pushFile(s *push.Session, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	r := flv.NewReader(file)
	start := time.Now()
	for {
		p, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if p.IsMetadata {
			continue
		}

		var tag flv.Tag
		n, err := tag.ParseMediaTagHeader(p.Data, p.IsVideo)
		if err != nil {
			return err
		}
		if p.IsVideo && tag.IsSeq() {
			continue
		}
		if p.IsAudio && tag.SoundFormat() == av.SOUND_AAC && tag.AACPacketType() == av.AAC_SEQHDR {
			continue
		}

		if d := time.Duration(p.TimeStamp)*time.Millisecond - time.Since(start); d > 0 {
			time.Sleep(d)
		}

		if p.IsAudio {
			err = s.PushAudio(&av.AudioFrame{PTS: p.TimeStamp, Data: p.Data[n:]})
		} else {
			err = s.PushVideo(&av.VideoFrame{
				PTS:      p.TimeStamp,
				KeyFrame: tag.IsKeyFrame(),
				Data:     p.Data[n:],
			})
		}
		if errors.Is(err, push.ErrNoMem) {
			// queue full, drop the frame and keep pacing
			continue
		}
		if err != nil {
			return err
		}
	}
}

// probeFile scans the file for the track infos a session needs: codec ids
// from the first media tags, configuration blobs from the sequence headers
// and dimensions from onMetaData.
func probeFile(path string) (*av.AudioInfo, *av.VideoInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	var (
		audio *av.AudioInfo
		video *av.VideoInfo
		meta  amf.Object
	)
	r := flv.NewReader(file)
	for audio == nil || video == nil {
		p, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		switch {
		case p.IsMetadata:
			meta = decodeMetaData(p.Data)
		case p.IsAudio && audio == nil:
			audio, err = probeAudio(p.Data)
		case p.IsVideo && video == nil:
			video, err = probeVideo(p.Data)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	if audio == nil && video == nil {
		return nil, nil, fmt.Errorf("no media tags in %s", path)
	}

	if video != nil {
		if w, ok := meta["width"].(float64); ok {
			video.Width = uint16(w)
		}
		if h, ok := meta["height"].(float64); ok {
			video.Height = uint16(h)
		}
		if fps, ok := meta["framerate"].(float64); ok {
			video.FPS = uint8(fps)
		}
		if video.Width == 0 || video.Height == 0 {
			return nil, nil, fmt.Errorf("flv metadata carries no video dimensions")
		}
	}
	return audio, video, nil
}

func probeAudio(data []byte) (*av.AudioInfo, error) {
	var tag flv.Tag
	n, err := tag.ParseMediaTagHeader(data, false)
	if err != nil {
		return nil, err
	}

	info := &av.AudioInfo{}
	switch tag.SoundFormat() {
	case av.SOUND_AAC:
		info.Codec = av.AudioCodecAAC
		if tag.AACPacketType() != av.AAC_SEQHDR {
			return nil, fmt.Errorf("aac stream without sequence header")
		}
		info.SpecInfo = append([]byte(nil), data[n:]...)
	case av.SOUND_MP3:
		info.Codec = av.AudioCodecMP3
	case av.SOUND_LPCM:
		info.Codec = av.AudioCodecPCM
	default:
		return nil, fmt.Errorf("unsupported sound format %d", tag.SoundFormat())
	}

	info.SampleRate = soundRateHz(data[0] >> 2 & 0x3)
	info.BitsPerSample = 8 << (data[0] >> 1 & 0x1)
	info.Channels = 1 + data[0]&0x1
	return info, nil
}

func soundRateHz(bits byte) uint32 {
	switch bits {
	case av.SOUND_11Khz:
		return 11025
	case av.SOUND_22Khz:
		return 22050
	case av.SOUND_44Khz:
		return 44100
	default:
		return 5512
	}
}

func probeVideo(data []byte) (*av.VideoInfo, error) {
	var tag flv.Tag
	n, err := tag.ParseMediaTagHeader(data, true)
	if err != nil {
		return nil, err
	}

	info := &av.VideoInfo{}
	switch tag.CodecID() {
	case av.CODEC_AVC:
		info.Codec = av.VideoCodecH264
		if !tag.IsSeq() {
			return nil, fmt.Errorf("avc stream without sequence header")
		}
		info.SpecInfo = append([]byte(nil), data[n:]...)
	case av.CODEC_JPEG:
		info.Codec = av.VideoCodecMJPEG
	default:
		return nil, fmt.Errorf("unsupported video codec %d", tag.CodecID())
	}
	return info, nil
}

func decodeMetaData(data []byte) amf.Object {
	d := &amf.Decoder{}
	vs, _ := d.DecodeBatch(bytes.NewReader(data), amf.AMF0)
	for _, v := range vs {
		switch obj := v.(type) {
		case amf.Object:
			return obj
		case amf.ECMAArray:
			return amf.Object(obj)
		}
	}
	return nil
}

func init() {
	RootCmd.AddCommand(PushCmd)
	PushCmd.Flags().StringVarP(&flags.URL, "url", "u", "", "rtmp publish url")
	PushCmd.Flags().StringVarP(&flags.FilePath, "file", "f", "", "flv file to push")
	PushCmd.Flags().StringVarP(&flags.ConfigFile, "config", "c", "", "yaml config file")
	PushCmd.Flags().Uint32Var(&flags.ChunkSize, "chunk-size", 0, "outgoing rtmp chunk size")
	PushCmd.Flags().IntVar(&flags.QueueLen, "queue", 0, "send queue length")
	PushCmd.Flags().IntVar(&flags.TimeoutSec, "timeout", 0, "dial and read timeout in seconds")
	PushCmd.Flags().BoolVar(&flags.TLSVerify, "tls-verify", false, "verify server certificate on rtmps")
	PushCmd.Flags().BoolVar(&flags.Loop, "loop", false, "replay the file forever")
	PushCmd.Flags().StringVar(&flags.StatsListen, "stats-listen", "", "serve metrics and session stats on this address")
}
