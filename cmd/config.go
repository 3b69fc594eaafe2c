package cmd

import (
	"os"
	"time"

	"github.com/zijiren233/livepush/cmd/flags"
	"github.com/zijiren233/livepush/push"
	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	URL         string `yaml:"url"`
	File        string `yaml:"file"`
	ChunkSize   uint32 `yaml:"chunkSize"`
	QueueLen    int    `yaml:"queueLen"`
	TimeoutSec  int    `yaml:"timeout"`
	TLSVerify   bool   `yaml:"tlsVerify"`
	Loop        bool   `yaml:"loop"`
	StatsListen string `yaml:"statsListen"`
}

// loadConfig merges an optional yaml file under the command line flags:
// a flag left at its zero value takes the file's value.
func loadConfig() (push.Config, error) {
	var fc fileConfig
	if flags.ConfigFile != "" {
		b, err := os.ReadFile(flags.ConfigFile)
		if err != nil {
			return push.Config{}, err
		}
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return push.Config{}, err
		}
	}

	if flags.URL == "" {
		flags.URL = fc.URL
	}
	if flags.FilePath == "" {
		flags.FilePath = fc.File
	}
	if flags.ChunkSize == 0 {
		flags.ChunkSize = fc.ChunkSize
	}
	if flags.QueueLen == 0 {
		flags.QueueLen = fc.QueueLen
	}
	if flags.TimeoutSec == 0 {
		flags.TimeoutSec = fc.TimeoutSec
	}
	if !flags.TLSVerify {
		flags.TLSVerify = fc.TLSVerify
	}
	if !flags.Loop {
		flags.Loop = fc.Loop
	}
	if flags.StatsListen == "" {
		flags.StatsListen = fc.StatsListen
	}

	return push.Config{
		URL:       flags.URL,
		ChunkSize: flags.ChunkSize,
		QueueLen:  flags.QueueLen,
		Timeout:   time.Duration(flags.TimeoutSec) * time.Second,
		TLSVerify: flags.TLSVerify,
	}, nil
}
