// decode-probe pushes an elementary video stream through the decode session
// and reports what comes back out. It exists for manual verification on a
// machine with a GStreamer runtime; the package's unit tests do not need it.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	gstdecoder "github.com/e7canasta/gst-decoder"
)

const version = "v0.1.0"

// probeSettings drives the decoder from flags instead of a host settings
// store.
type probeSettings struct {
	overlay bool
}

func (s probeSettings) GetBool(key string) bool {
	switch key {
	case gstdecoder.SettingEnabled:
		return true
	case gstdecoder.SettingOverlaySink:
		return s.overlay
	}
	return false
}

func main() {
	input := flag.String("input", "", "Elementary stream file, Annex-B framed (required)")
	codecName := flag.String("codec", "h264", "Codec: h264, hevc, vp8, vp9, av1, mpeg2, mpeg4")
	width := flag.Int("width", 1920, "Coded width")
	height := flag.Int("height", 1080, "Coded height")
	fps := flag.Int("fps", 25, "Frame rate used for synthetic timestamps")
	maxPictures := flag.Int("max-pictures", 0, "Stop after N pictures (0 = drain the file)")
	overlay := flag.Bool("overlay", false, "Request the overlay sink path")
	statsInterval := flag.Int("stats-interval", 5, "Seconds between stats reports")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("decode-probe %s\n", version)
		os.Exit(0)
	}
	if *input == "" {
		fmt.Fprintf(os.Stderr, "Error: --input flag is required\n\n")
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  decode-probe --input clip.h264 --width 1920 --height 1080\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	codec := parseCodec(*codecName)
	if codec == gstdecoder.CodecUnknown {
		log.Fatalf("Invalid codec: %s", *codecName)
	}

	payload, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	units := splitAnnexB(payload)
	if len(units) == 0 {
		log.Fatalf("No access units found in %s", *input)
	}

	rt, err := gstdecoder.NewRuntime(gstdecoder.RuntimeConfig{
		Settings: probeSettings{overlay: *overlay},
	})
	if err != nil {
		log.Fatalf("Runtime: %v", err)
	}

	dec := gstdecoder.NewVideoDecoder(rt)
	err = dec.Open(gstdecoder.CodecHints{
		Codec:    codec,
		Width:    *width,
		Height:   *height,
		FPSRate:  *fps,
		FPSScale: 1,
	})
	if err != nil {
		log.Fatalf("Open: %v", err)
	}
	defer dec.Stop()

	fmt.Printf("decode-probe %s: %s, %d units, %dx%d %s @ %d fps\n",
		version, *input, len(units), *width, *height, codec, *fps)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	statsTicker := time.NewTicker(time.Duration(*statsInterval) * time.Second)
	defer statsTicker.Stop()

	frameUS := int64(1_000_000 / *fps)
	pictures := 0
	next := 0

	for {
		select {
		case <-sigCh:
			fmt.Println("\ninterrupted")
			printStats(dec.Stats())
			return
		case <-statsTicker.C:
			printStats(dec.Stats())
		default:
		}

		if next < len(units) {
			pkt := gstdecoder.CompressedPacket{
				Data:     units[next],
				PTS:      int64(next) * frameUS,
				DTS:      gstdecoder.NoTimestamp,
				Duration: frameUS,
			}
			if err := dec.AddData(pkt); err != nil {
				log.Fatalf("AddData: %v", err)
			}
			if dec.Stats().PacketsPushed > uint64(next) {
				next++
			}
		}

		var pic gstdecoder.Picture
		switch res := dec.GetPicture(&pic); res {
		case gstdecoder.PictureReady:
			pictures++
			slog.Info("picture",
				"n", pictures,
				"pts_us", pic.PTS,
				"format", pic.Format,
				"size", fmt.Sprintf("%dx%d", pic.Width, pic.Height),
				"display", fmt.Sprintf("%dx%d", pic.DisplayWidth, pic.DisplayHeight),
				"decoder", pic.DecoderName,
			)
			pic.Buffer.Release()
			if *maxPictures > 0 && pictures >= *maxPictures {
				printStats(dec.Stats())
				return
			}
		case gstdecoder.PictureEOF:
			fmt.Println("stream drained")
			printStats(dec.Stats())
			return
		case gstdecoder.PictureError:
			log.Fatalf("GetPicture: session failed (state %s)", dec.State())
		case gstdecoder.PictureNone, gstdecoder.PictureAgain:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func parseCodec(name string) gstdecoder.Codec {
	for _, c := range []gstdecoder.Codec{
		gstdecoder.CodecH264,
		gstdecoder.CodecHEVC,
		gstdecoder.CodecVP8,
		gstdecoder.CodecVP9,
		gstdecoder.CodecAV1,
		gstdecoder.CodecMPEG2,
		gstdecoder.CodecMPEG4,
	} {
		if c.String() == name {
			return c
		}
	}
	return gstdecoder.CodecUnknown
}

var startCode = []byte{0, 0, 0, 1}

// splitAnnexB slices a byte-stream file at its start codes. Each slice
// keeps its start code so the parser downstream sees proper framing.
func splitAnnexB(data []byte) [][]byte {
	var units [][]byte
	start := bytes.Index(data, startCode)
	if start < 0 {
		// Not Annex-B framed; push the whole file as one unit and let
		// the graph's parser sort it out.
		return [][]byte{data}
	}
	for start < len(data) {
		next := bytes.Index(data[start+len(startCode):], startCode)
		if next < 0 {
			units = append(units, data[start:])
			break
		}
		end := start + len(startCode) + next
		units = append(units, data[start:end])
		start = end
	}
	return units
}

func printStats(s gstdecoder.DecoderStats) {
	fmt.Printf("state=%s decoder=%s hw=%v pushed=%d withheld=%d pictures=%d timeouts=%d pull_errors=%d\n",
		s.State, s.DecoderName, s.Hardware,
		s.PacketsPushed, s.PacketsWithheld, s.Pictures,
		s.PullTimeouts, s.PullErrors,
	)
}
