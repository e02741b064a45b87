package trainer

import (
	"fmt"
	"io"
	"time"

	"github.com/ravensaid/ravensaid/internal/net"
	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
var ProgressbarStyle = progressbar.ThemeASCII

// ProgressBar draws one progress bar per epoch, advancing per trained example.
type ProgressBar struct {
	net.BaseCallback
	w   io.Writer
	bar *progressbar.ProgressBar

	sum   float64
	count int
}

// NewProgressBar creates a progress bar callback writing to w, usually os.Stderr.
func NewProgressBar(w io.Writer) *ProgressBar {
	return &ProgressBar{w: w}
}

func (p *ProgressBar) OnEpochBegin(epoch, steps int, n *net.Network) {
	p.sum, p.count = 0, 0
	p.bar = progressbar.NewOptions(steps,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(fmt.Sprintf("epoch %d", epoch)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("examples"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *ProgressBar) OnBatchEnd(step int, loss float64, n *net.Network) {
	if p.bar == nil {
		return
	}
	p.sum += loss
	p.count++
	if p.count%64 == 0 {
		p.bar.Describe(fmt.Sprintf("loss %.4f", p.sum/float64(p.count)))
	}
	_ = p.bar.Add(1)
}

func (p *ProgressBar) OnEpochEnd(stats net.EpochStats, n *net.Network) error {
	if p.bar == nil {
		return nil
	}
	err := p.bar.Finish()
	p.bar = nil
	return err
}
