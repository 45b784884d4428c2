package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/netdebug/ShamirSecretSharing/pkg"
	"github.com/netdebug/ShamirSecretSharing/pkg/driver"
)

// consoleObserver prints a banner for every stage and spins while the stage's tool runs
type consoleObserver struct {
	out     io.Writer
	spinner bool

	bar  *progressbar.ProgressBar
	stop chan struct{}
	wg   sync.WaitGroup
}

func newConsoleObserver(out io.Writer, spinner bool) *consoleObserver {
	return &consoleObserver{out: out, spinner: spinner}
}

func (o *consoleObserver) StageStarted(stage driver.Stage) {
	pkg.PrintTask(o.out, string(stage.Name))

	if !o.spinner {
		return
	}

	o.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(o.out),
		progressbar.OptionSetDescription("     running"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(o.out, "\n")
		}),
	)
	o.stop = make(chan struct{})
	o.wg.Add(1)

	go func(bar *progressbar.ProgressBar, stop chan struct{}) {
		defer o.wg.Done()

		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}(o.bar, o.stop)
}

func (o *consoleObserver) StageFinished(result driver.StageResult) {
	if o.bar != nil {
		close(o.stop)
		o.wg.Wait()
		o.bar.Finish()
		o.bar = nil
	}

	duration := pkg.FormatDuration(result.Duration)
	switch {
	case result.Tolerated:
		pkg.PrintError(o.out, fmt.Sprintf("%s failed after %s (ignored)", result.Stage.Name, duration))
	case result.Failed():
		pkg.PrintError(o.out, fmt.Sprintf("%s failed after %s", result.Stage.Name, duration))
	default:
		pkg.PrintSubtask(o.out, fmt.Sprintf("%s finished in %s", result.Stage.Name, duration))
	}
}
