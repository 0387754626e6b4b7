package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ParseLogLevel maps a level name onto its slog level. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

type Config struct {
	LogLevel string      `mapstructure:"log_level"`
	Data     DataConfig  `mapstructure:"data"`
	Mel      MelConfig   `mapstructure:"mel"`
	Codec    CodecConfig `mapstructure:"codec"`
}

// DataConfig covers manifests, batching, and sample-building behavior.
type DataConfig struct {
	TrainFilelist       string   `mapstructure:"train_filelist"`
	ValidFilelist       string   `mapstructure:"valid_filelist"`
	Separator           string   `mapstructure:"separator"`
	BatchSize           int      `mapstructure:"batch_size"`
	NumWorkers          int      `mapstructure:"num_workers"`
	PinMemory           bool     `mapstructure:"pin_memory"`
	Cleaners            []string `mapstructure:"cleaners"`
	AddBlank            bool     `mapstructure:"add_blank"`
	NumSpeakers         int      `mapstructure:"num_speakers"`
	Seed                int64    `mapstructure:"seed"`
	MinSamples          int      `mapstructure:"min_samples"`
	MaxResampleAttempts int      `mapstructure:"max_resample_attempts"`
}

// MelConfig covers spectrogram extraction and normalization statistics.
type MelConfig struct {
	NFFT       int     `mapstructure:"n_fft"`
	NumMels    int     `mapstructure:"n_mels"`
	SampleRate int     `mapstructure:"sample_rate"`
	HopLength  int     `mapstructure:"hop_length"`
	WinLength  int     `mapstructure:"win_length"`
	FMin       float64 `mapstructure:"f_min"`
	FMax       float64 `mapstructure:"f_max"`
	Mean       float64 `mapstructure:"mean"`
	Std        float64 `mapstructure:"std"`
}

// CodecConfig covers the optional discrete-code extraction step.
type CodecConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ModelPath      string `mapstructure:"model_path"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTAPIVersion  uint32 `mapstructure:"ort_api_version"`
	HopFactor      int    `mapstructure:"hop_factor"`
	InputName      string `mapstructure:"input_name"`
	OutputName     string `mapstructure:"output_name"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Data: DataConfig{
			TrainFilelist:       "filelists/train.txt",
			ValidFilelist:       "filelists/valid.txt",
			Separator:           "|",
			BatchSize:           32,
			NumWorkers:          4,
			PinMemory:           true,
			Cleaners:            []string{"english_cleaners"},
			AddBlank:            true,
			NumSpeakers:         1,
			Seed:                1234,
			MinSamples:          66150,
			MaxResampleAttempts: 100,
		},
		Mel: MelConfig{
			NFFT:       1024,
			NumMels:    80,
			SampleRate: 22050,
			HopLength:  256,
			WinLength:  1024,
			FMin:       0,
			FMax:       8000,
			Mean:       0,
			Std:        1,
		},
		Codec: CodecConfig{
			Enabled:        false,
			ModelPath:      "models/codec.onnx",
			ORTLibraryPath: "",
			ORTAPIVersion:  23,
			HopFactor:      320,
			InputName:      "audio",
			OutputName:     "codes",
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("data-train-filelist", defaults.Data.TrainFilelist, "Path to training filelist")
	fs.String("data-valid-filelist", defaults.Data.ValidFilelist, "Path to validation filelist")
	fs.String("data-separator", defaults.Data.Separator, "Filelist field separator")
	fs.Int("data-batch-size", defaults.Data.BatchSize, "Samples per batch")
	fs.Int("data-num-workers", defaults.Data.NumWorkers, "Parallel sample-building workers")
	fs.Bool("data-pin-memory", defaults.Data.PinMemory, "Pinned-memory hint for the consuming trainer")
	fs.StringSlice("data-cleaners", defaults.Data.Cleaners, "Text cleaner rules applied in order")
	fs.Bool("data-add-blank", defaults.Data.AddBlank, "Intersperse the blank symbol between text symbols")
	fs.Int("data-num-speakers", defaults.Data.NumSpeakers, "Speaker count; >1 switches manifests to three-field records")
	fs.Int64("data-seed", defaults.Data.Seed, "Shuffle and resample RNG seed")
	fs.Int("data-min-samples", defaults.Data.MinSamples, "Minimum waveform length in samples")
	fs.Int("data-max-resample-attempts", defaults.Data.MaxResampleAttempts, "Resample attempts before giving up on short audio")
	fs.Int("mel-n-fft", defaults.Mel.NFFT, "FFT size")
	fs.Int("mel-n-mels", defaults.Mel.NumMels, "Mel bin count")
	fs.Int("mel-sample-rate", defaults.Mel.SampleRate, "Expected audio sample rate in Hz")
	fs.Int("mel-hop-length", defaults.Mel.HopLength, "Hop length in samples")
	fs.Int("mel-win-length", defaults.Mel.WinLength, "Analysis window length in samples")
	fs.Float64("mel-f-min", defaults.Mel.FMin, "Lowest mel band edge in Hz")
	fs.Float64("mel-f-max", defaults.Mel.FMax, "Highest mel band edge in Hz")
	fs.Float64("mel-mean", defaults.Mel.Mean, "Mel normalization mean")
	fs.Float64("mel-std", defaults.Mel.Std, "Mel normalization std")
	fs.Bool("codec-enabled", defaults.Codec.Enabled, "Extract discrete codes per batch")
	fs.String("codec-model-path", defaults.Codec.ModelPath, "Path to codec ONNX model")
	fs.String("codec-ort-library-path", defaults.Codec.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Codec.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --codec-ort-library-path)")
	fs.Uint32("codec-ort-api-version", defaults.Codec.ORTAPIVersion, "ONNX Runtime API version")
	fs.Int("codec-hop-factor", defaults.Codec.HopFactor, "Raw samples represented by one code token")
	fs.String("codec-input-name", defaults.Codec.InputName, "Codec graph input tensor name")
	fs.String("codec-output-name", defaults.Codec.OutputName, "Codec graph output tensor name")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
		// Aliases are only needed to map flag names onto config keys; when no
		// flags are bound they would shadow values read from the config file.
		registerAliases(v)
	}

	v.SetEnvPrefix("TEXTMEL")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("codec.ort_library_path", "TEXTMEL_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("textmel")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("data.train_filelist", c.Data.TrainFilelist)
	v.SetDefault("data.valid_filelist", c.Data.ValidFilelist)
	v.SetDefault("data.separator", c.Data.Separator)
	v.SetDefault("data.batch_size", c.Data.BatchSize)
	v.SetDefault("data.num_workers", c.Data.NumWorkers)
	v.SetDefault("data.pin_memory", c.Data.PinMemory)
	v.SetDefault("data.cleaners", c.Data.Cleaners)
	v.SetDefault("data.add_blank", c.Data.AddBlank)
	v.SetDefault("data.num_speakers", c.Data.NumSpeakers)
	v.SetDefault("data.seed", c.Data.Seed)
	v.SetDefault("data.min_samples", c.Data.MinSamples)
	v.SetDefault("data.max_resample_attempts", c.Data.MaxResampleAttempts)
	v.SetDefault("mel.n_fft", c.Mel.NFFT)
	v.SetDefault("mel.n_mels", c.Mel.NumMels)
	v.SetDefault("mel.sample_rate", c.Mel.SampleRate)
	v.SetDefault("mel.hop_length", c.Mel.HopLength)
	v.SetDefault("mel.win_length", c.Mel.WinLength)
	v.SetDefault("mel.f_min", c.Mel.FMin)
	v.SetDefault("mel.f_max", c.Mel.FMax)
	v.SetDefault("mel.mean", c.Mel.Mean)
	v.SetDefault("mel.std", c.Mel.Std)
	v.SetDefault("codec.enabled", c.Codec.Enabled)
	v.SetDefault("codec.model_path", c.Codec.ModelPath)
	v.SetDefault("codec.ort_library_path", c.Codec.ORTLibraryPath)
	v.SetDefault("codec.ort_api_version", c.Codec.ORTAPIVersion)
	v.SetDefault("codec.hop_factor", c.Codec.HopFactor)
	v.SetDefault("codec.input_name", c.Codec.InputName)
	v.SetDefault("codec.output_name", c.Codec.OutputName)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("log_level", "log-level")
	v.RegisterAlias("data.train_filelist", "data-train-filelist")
	v.RegisterAlias("data.valid_filelist", "data-valid-filelist")
	v.RegisterAlias("data.separator", "data-separator")
	v.RegisterAlias("data.batch_size", "data-batch-size")
	v.RegisterAlias("data.num_workers", "data-num-workers")
	v.RegisterAlias("data.pin_memory", "data-pin-memory")
	v.RegisterAlias("data.cleaners", "data-cleaners")
	v.RegisterAlias("data.add_blank", "data-add-blank")
	v.RegisterAlias("data.num_speakers", "data-num-speakers")
	v.RegisterAlias("data.seed", "data-seed")
	v.RegisterAlias("data.min_samples", "data-min-samples")
	v.RegisterAlias("data.max_resample_attempts", "data-max-resample-attempts")
	v.RegisterAlias("mel.n_fft", "mel-n-fft")
	v.RegisterAlias("mel.n_mels", "mel-n-mels")
	v.RegisterAlias("mel.sample_rate", "mel-sample-rate")
	v.RegisterAlias("mel.hop_length", "mel-hop-length")
	v.RegisterAlias("mel.win_length", "mel-win-length")
	v.RegisterAlias("mel.f_min", "mel-f-min")
	v.RegisterAlias("mel.f_max", "mel-f-max")
	v.RegisterAlias("mel.mean", "mel-mean")
	v.RegisterAlias("mel.std", "mel-std")
	v.RegisterAlias("codec.enabled", "codec-enabled")
	v.RegisterAlias("codec.model_path", "codec-model-path")
	v.RegisterAlias("codec.ort_library_path", "codec-ort-library-path")
	v.RegisterAlias("codec.ort_library_path", "ort-lib")
	v.RegisterAlias("codec.ort_api_version", "codec-ort-api-version")
	v.RegisterAlias("codec.hop_factor", "codec-hop-factor")
	v.RegisterAlias("codec.input_name", "codec-input-name")
	v.RegisterAlias("codec.output_name", "codec-output-name")
}
