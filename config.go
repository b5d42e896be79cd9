package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Zelak312/flowarr/interp"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	BackendFFmpeg = "ffmpeg"
	BackendOpenCV = "opencv"
	BackendFrames = "frames"
)

type Config struct {
	BindAddress                string            `yaml:"bindAddress"`
	Port                       int32             `yaml:"port"`
	DatabasePath               string            `yaml:"databasePath"`
	LogPath                    string            `yaml:"logPath"`
	LogLevel                   string            `yaml:"logLevel"`
	ProcessFolder              string            `yaml:"processFolder"`
	Workers                    int               `yaml:"workers"`
	PairWorkers                int               `yaml:"pairWorkers"`
	Factor                     int               `yaml:"factor"`
	Mode                       string            `yaml:"mode"`
	Backend                    string            `yaml:"backend"`
	FramesFPS                  float64           `yaml:"framesFPS"`
	Flow                       interp.FlowParams `yaml:"flow"`
	FFmpegOptions              FFmpegOptions     `yaml:"ffmpegOptions"`
	OpenCV                     OpenCVOptions     `yaml:"opencv"`
	WebP                       WebPOptions       `yaml:"webp"`
	Transcode                  TranscodeOptions  `yaml:"transcode"`
	DeleteOutputIfAlreadyExist *bool             `yaml:"deleteOutputIfAlreadyExist"`
}

type FFmpegOptions struct {
	FFmpegBinary      string `yaml:"ffmpegBinary"`
	FFprobeBinary     string `yaml:"ffprobeBinary"`
	HWAccelDecodeFlag string `yaml:"HWAccelDecodeFlag"`
	HWAccelEncodeFlag string `yaml:"HWAccelEncodeFlag"`
	VideoCodec        string `yaml:"videoCodec"`
	CRF               int    `yaml:"crf"`
}

type OpenCVOptions struct {
	FourCC string `yaml:"fourcc"`
}

// WebPOptions apply to animated WebP inputs, which are decoded whatever
// the backend. Factor replaces the default factor for them.
type WebPOptions struct {
	FPS    float64 `yaml:"fps"`
	Factor int     `yaml:"factor"`
}

type TranscodeOptions struct {
	Enabled                   *bool  `yaml:"enabled"`
	Binary                    string `yaml:"binary"`
	VideoCodec                string `yaml:"videoCodec"`
	Preset                    string `yaml:"preset"`
	CRF                       int    `yaml:"crf"`
	KeepIntermediateOnFailure *bool  `yaml:"keepIntermediateOnFailure"`
}

func boolPtr(v bool) *bool {
	return &v
}

// Verify config and set defaults
func verifyConfig(config *Config) error {
	if config == nil {
		return errors.New("cannot verify config, config is nil")
	}

	if config.BindAddress == "" {
		config.BindAddress = "127.0.0.1"
	}

	if config.Port == 0 {
		config.Port = 80
	}

	if config.DatabasePath == "" {
		config.DatabasePath = "./flowarr.db"
	}

	if config.LogPath == "" {
		config.LogPath = "./logs"
	}

	if config.ProcessFolder == "" {
		config.ProcessFolder = "./process"
	}

	if config.Workers == 0 {
		config.Workers = 1
	}

	if config.Workers < 0 || config.PairWorkers < 0 {
		return errors.New("workers and pairWorkers can't be negative")
	}

	if config.Factor == 0 {
		config.Factor = 2
	}

	if config.Factor < 1 {
		return fmt.Errorf("%w: factor must be >= 1, got %d", interp.ErrInvalidParameter, config.Factor)
	}

	if config.Mode == "" {
		config.Mode = string(interp.ModeFlow)
	}

	mode, err := interp.ParseMode(config.Mode)
	if err != nil {
		return err
	}
	config.Mode = string(mode)

	config.Backend = strings.ToLower(config.Backend)
	switch config.Backend {
	case "":
		config.Backend = BackendFFmpeg
	case BackendFFmpeg, BackendOpenCV, BackendFrames:
	default:
		return fmt.Errorf("unknown backend %q, expected one of ffmpeg, opencv, frames", config.Backend)
	}

	if config.FramesFPS == 0 {
		config.FramesFPS = 30
	}

	if config.FramesFPS < 0 {
		return fmt.Errorf("%w: framesFPS must be > 0", interp.ErrInvalidParameter)
	}

	fillFlowDefaults(&config.Flow)
	if err := config.Flow.Validate(); err != nil {
		return err
	}

	if config.FFmpegOptions.FFmpegBinary == "" {
		config.FFmpegOptions.FFmpegBinary = "ffmpeg"
	}

	if config.FFmpegOptions.FFprobeBinary == "" {
		config.FFmpegOptions.FFprobeBinary = "ffprobe"
	}

	if config.FFmpegOptions.VideoCodec == "" {
		config.FFmpegOptions.VideoCodec = "libx264"
	}

	if config.FFmpegOptions.CRF == 0 {
		config.FFmpegOptions.CRF = 20
	}

	if config.OpenCV.FourCC == "" {
		config.OpenCV.FourCC = "XVID"
	}

	if len(config.OpenCV.FourCC) != 4 {
		return fmt.Errorf("opencv fourcc must be 4 characters, got %q", config.OpenCV.FourCC)
	}

	if config.WebP.FPS == 0 {
		config.WebP.FPS = 16
	}

	if config.WebP.FPS < 0 {
		return fmt.Errorf("%w: webp fps must be > 0", interp.ErrInvalidParameter)
	}

	if config.WebP.Factor == 0 {
		config.WebP.Factor = 4
	}

	if config.WebP.Factor < 1 {
		return fmt.Errorf("%w: webp factor must be >= 1, got %d", interp.ErrInvalidParameter, config.WebP.Factor)
	}

	if config.Transcode.Enabled == nil {
		config.Transcode.Enabled = boolPtr(false)
	}

	if config.Transcode.Binary == "" {
		config.Transcode.Binary = "ffmpeg"
	}

	if config.Transcode.VideoCodec == "" {
		config.Transcode.VideoCodec = "libx264"
	}

	if config.Transcode.Preset == "" {
		config.Transcode.Preset = "medium"
	}

	if config.Transcode.CRF == 0 {
		config.Transcode.CRF = 23
	}

	if config.Transcode.KeepIntermediateOnFailure == nil {
		config.Transcode.KeepIntermediateOnFailure = boolPtr(true)
	}

	if config.DeleteOutputIfAlreadyExist == nil {
		config.DeleteOutputIfAlreadyExist = boolPtr(false)
	}

	return nil
}

// fillFlowDefaults replaces every unset flow parameter with its default.
func fillFlowDefaults(p *interp.FlowParams) {
	def := interp.DefaultFlowParams()
	if p.PyrScale == 0 {
		p.PyrScale = def.PyrScale
	}
	if p.Levels == 0 {
		p.Levels = def.Levels
	}
	if p.WinSize == 0 {
		p.WinSize = def.WinSize
	}
	if p.Iterations == 0 {
		p.Iterations = def.Iterations
	}
	if p.PolyN == 0 {
		p.PolyN = def.PolyN
	}
	if p.PolySigma == 0 {
		p.PolySigma = def.PolySigma
	}
}

func GetConfig(path string) (Config, error) {
	config := Config{}

	data, err := os.ReadFile(path)
	if err != nil && !(errors.Is(err, os.ErrNotExist) && path == defaultConfigPath) {
		return Config{}, err
	}

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return Config{}, err
	}

	// Override with env variables if they are passed in
	err = envconfig.ProcessWithOptions("", &config, envconfig.Options{SplitWords: true})
	if err != nil {
		return Config{}, err
	}

	err = verifyConfig(&config)
	if err != nil {
		return Config{}, err
	}

	return config, nil
}
