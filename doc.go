// Package gstdecoder provides hardware-accelerated video decoding using
// GStreamer.
//
// The package orchestrates one decode session at a time: it assembles a
// demux-to-presentation graph (appsrc, auto-plugged decoder, convert, scale,
// sink), feeds it compressed access units and hands decoded pictures back
// out through a reference-counted buffer pool. It does not decode anything
// itself; codec work happens inside the GStreamer elements, preferably
// hardware ones.
//
// # Quick Start
//
// A decoder is bound to a Runtime, which carries the host collaborators and
// enforces one active session per process:
//
//	rt, err := gstdecoder.NewRuntime(gstdecoder.RuntimeConfig{
//	    Settings: hostSettings,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dec := gstdecoder.NewVideoDecoder(rt)
//	err = dec.Open(gstdecoder.CodecHints{
//	    Codec:  gstdecoder.CodecH264,
//	    Width:  1920,
//	    Height: 1080,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dec.Stop()
//
//	for pkt := range demuxed {
//	    if err := dec.AddData(pkt); err != nil {
//	        break
//	    }
//	    var pic gstdecoder.Picture
//	    switch dec.GetPicture(&pic) {
//	    case gstdecoder.PictureReady:
//	        render(pic)
//	        pic.Buffer.Release()
//	    case gstdecoder.PictureEOF:
//	        return
//	    case gstdecoder.PictureError:
//	        log.Fatal("decode failed")
//	    }
//	}
//
// # Presentation Paths
//
// Two sink strategies exist. The software path pulls raw frames back into
// the process through an app sink; Picture.Buffer then carries the pixel
// data. The overlay path, selected by settings when the compositor exports
// a surface, lets the sink render directly; pictures are then bookkeeping
// slots that track presentation progress.
//
// # Requirements
//
//   - gstreamer1.0 runtime with the base and good plugin sets
//   - decoders for the streams in use (libav, VA-API, V4L2, ...)
//   - for the overlay path, a Wayland compositor exporting a surface
package gstdecoder
