/*
Package interp re-times a video stream by an integer factor K, synthesizing
K-1 frames between every pair of consecutive input frames.

For N input frames the output holds (N-1)*K+1 frames and input frame i lands
at output position i*K, unchanged.

Basic usage:

	strategy, err := interp.NewStrategy(interp.ModeFlow, cvflow.NewFarneback(), interp.DefaultFlowParams())
	if err != nil {
	    log.Fatal(err)
	}

	p, err := interp.New(interp.Config{Factor: 4, Strategy: strategy})
	if err != nil {
	    log.Fatal(err)
	}

	report, err := p.Run(ctx, sources, "in.mp4", sinks, "out.mkv")
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Printf("%s: %d frames written\n", report.Status, report.FramesOut)

Pause, Resume and Stop may be called from any goroutine while Run is in
progress. They take effect between frame pairs.
*/
package interp
