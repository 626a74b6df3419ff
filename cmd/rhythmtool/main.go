// Command rhythmtool runs the rhythm analyzer over a WAV file and
// writes the per-frame control stream as JSON. It exists for tuning
// and regression: the same pipeline that runs against a live capture
// ring runs here against known material, so parameter changes can be
// compared offline.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-rhythm/logging"
	"github.com/RyanBlaney/sonido-rhythm/rhythm"
)

type OutRecord struct {
	FileName    string           `json:"file_name"`
	SampleRate  int              `json:"sample_rate"`
	NumChannels int              `json:"num_channels"`
	FrameRate   float64          `json:"frame_rate"`
	BPM         float64          `json:"bpm"`
	StabilityCV float64          `json:"stability_cv"`
	BeatTimesMs []int            `json:"beat_times_ms"`
	Frames      []OutFrameRecord `json:"frames,omitempty"`
}

type OutFrameRecord struct {
	Frame  int64   `json:"frame"`
	TimeMs int     `json:"time_ms"`
	Energy float64 `json:"energy"`
	Pulse  float64 `json:"pulse"`
	Phase  float64 `json:"phase"`
	Rhythm float64 `json:"rhythm_strength"`
}

var (
	outFile    = flag.String("o", "", "output file, default <input>.rhythm.json")
	configFile = flag.String("config", "", "analyzer config file (JSON)")
	withFrames = flag.Bool("frames", false, "include the per-frame control stream")
	verbose    = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	if *verbose {
		logging.SetLevel(logging.DebugLevel)
	}

	if err := run(flag.Arg(0)); err != nil {
		logging.Error(err, "rhythmtool failed")
		os.Exit(1)
	}
}

func run(inFile string) error {
	samples, sampleRate, numChannels, err := readWav(inFile)
	if err != nil {
		return err
	}

	cfg := rhythm.DefaultConfig()
	if *configFile != "" {
		cfg = rhythm.NewStore(*configFile).Load()
	}

	if sampleRate != cfg.FrontEnd.SampleRate {
		samples = resample(samples, sampleRate, cfg.FrontEnd.SampleRate)
	}

	analyzer, err := rhythm.NewAnalyzer(cfg)
	if err != nil {
		return err
	}

	out := &OutRecord{
		FileName:    inFile,
		SampleRate:  sampleRate,
		NumChannels: numChannels,
		FrameRate:   analyzer.FrameRate(),
		BeatTimesMs: []int{},
	}

	blockSize := analyzer.BlockSize()
	for start := 0; start+blockSize <= len(samples); start += blockSize {
		ctrl := analyzer.ProcessBlock(samples[start : start+blockSize])

		frame := analyzer.Frame() - 1
		timeMs := int(float64(frame) * 1000.0 / analyzer.FrameRate())
		if ev := analyzer.LastEvent(); ev.Fired && !ev.Forced {
			out.BeatTimesMs = append(out.BeatTimesMs,
				int(float64(ev.Frame)*1000.0/analyzer.FrameRate()))
		}
		if *withFrames {
			out.Frames = append(out.Frames, OutFrameRecord{
				Frame:  frame,
				TimeMs: timeMs,
				Energy: ctrl.Energy,
				Pulse:  ctrl.Pulse,
				Phase:  ctrl.Phase,
				Rhythm: ctrl.RhythmStrength,
			})
		}
	}

	out.BPM = analyzer.BPM()
	out.StabilityCV = analyzer.StabilityCV()

	buf, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	target := *outFile
	if target == "" {
		target = fromInFileName(inFile)
	}
	if err := os.WriteFile(target, buf, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logging.Info("analysis complete", logging.Fields{
		"file":         inFile,
		"out":          target,
		"bpm":          out.BPM,
		"beats":        len(out.BeatTimesMs),
		"stability_cv": out.StabilityCV,
	})
	return nil
}

// readWav decodes the whole file, mixes to mono and scales to [-1, 1].
func readWav(name string) ([]float64, int, int, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	var buf *audio.IntBuffer
	buf, err = dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, 0, fmt.Errorf("decode wav: missing format chunk")
	}

	channels := buf.Format.NumChannels
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int(1)<<(bitDepth-1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		samples[i] = sum * scale / float64(channels)
	}
	return samples, buf.Format.SampleRate, channels, nil
}

// resample does linear interpolation. Good enough for an analysis
// front-end that discards fine spectral detail anyway.
func resample(in []float64, fromRate, toRate int) []float64 {
	if len(in) == 0 || fromRate == toRate {
		return in
	}
	ratio := float64(fromRate) / float64(toRate)
	n := int(float64(len(in)) / ratio)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		if j+1 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}

func fromInFileName(inFile string) string {
	dir, fname := path.Split(inFile)
	if i := strings.LastIndex(fname, "."); i > 0 {
		fname = fname[:i]
	}
	return path.Join(dir, fname+".rhythm.json")
}

func usage() {
	fmt.Fprintln(os.Stderr, usageString)
}

const usageString = `use: rhythmtool [-o <out file>] [-config <file>] [-frames] [-v] <WAV file>
where
    <WAV file> is the input recording.

    -o <out file>: Optional. Default <WAV file>.rhythm.json.

    -config <file>: Optional. Analyzer configuration, JSON. Missing or
        invalid files fall back to defaults.

    -frames: Optional. Include every per-frame control record in the
        output instead of only the summary.

    -v: Optional. Debug logging.`
