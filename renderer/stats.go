package renderer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
)

type FrameStats struct {
	FrameID     uint32
	AccumFrames uint32

	// Time spent in the kernel launch.
	KernelTime time.Duration

	// Total time for the frame including parameter upload and presentation.
	RenderTime time.Duration
}

// SessionStats aggregates frame statistics over a rendering session.
type SessionStats struct {
	Device string
	Frames uint32

	// The most recent frame.
	Last FrameStats

	KernelTime time.Duration
	RenderTime time.Duration
}

// Append the statistics of a rendered frame.
func (s *SessionStats) Append(fs FrameStats) {
	s.Frames++
	s.Last = fs
	s.KernelTime += fs.KernelTime
	s.RenderTime += fs.RenderTime
}

func (s SessionStats) avg(total time.Duration) time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return total / time.Duration(s.Frames)
}

// Table renders the session statistics as a text table.
func (s SessionStats) Table() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Device", "Frames", "Accumulated", "Avg kernel time", "Avg frame time"})
	table.Append([]string{
		s.Device,
		fmt.Sprintf("%d", s.Frames),
		fmt.Sprintf("%d", s.Last.AccumFrames),
		s.avg(s.KernelTime).String(),
		s.avg(s.RenderTime).String(),
	})
	table.SetFooter([]string{"", "", "", "TOTAL", s.RenderTime.String()})

	table.Render()
	return buf.String()
}
