package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/escribajus/hearing-transcription/internal/types"
)

// Format constants for transcript export
const (
	FormatText     = "txt"
	FormatMarkdown = "md"
	FormatSRT      = "srt"
)

// ValidFormat reports whether the export format is supported
func ValidFormat(format string) bool {
	return format == FormatText || format == FormatMarkdown || format == FormatSRT
}

// ContentType returns the MIME type for an export format
func ContentType(format string) string {
	switch format {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatSRT:
		return "application/x-subrip"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render produces the transcript document for a job in the requested format
func Render(job *types.Job, utterances []types.Utterance, format string) string {
	switch format {
	case FormatMarkdown:
		return renderMarkdown(job, utterances)
	case FormatSRT:
		return renderSRT(utterances)
	default:
		return renderText(utterances)
	}
}

func renderText(utterances []types.Utterance) string {
	var b strings.Builder
	for _, u := range utterances {
		fmt.Fprintf(&b, "%s: %s\n\n", u.Speaker, strings.TrimSpace(u.Text))
	}
	return b.String()
}

func renderMarkdown(job *types.Job, utterances []types.Utterance) string {
	var b strings.Builder
	if job.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", job.Title)
	} else {
		b.WriteString("# Transcrição de Audiência\n\n")
	}
	fmt.Fprintf(&b, "- Motor: `%s`\n", job.Engine)
	fmt.Fprintf(&b, "- Gerado em: %s\n", job.UpdatedAt.Format("02/01/2006 15:04"))
	b.WriteString("\n---\n\n")

	for _, u := range utterances {
		ts := ""
		if u.EndTime > 0 {
			ts = fmt.Sprintf("[%s-%s] ", secToTimestamp(u.StartTime), secToTimestamp(u.EndTime))
		}
		fmt.Fprintf(&b, "%s**%s:** %s\n\n", ts, u.Speaker, strings.TrimSpace(u.Text))
	}
	return b.String()
}

func renderSRT(utterances []types.Utterance) string {
	var b strings.Builder
	for i, u := range utterances {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s: %s\n\n",
			i+1, secToSRT(u.StartTime), secToSRT(u.EndTime),
			u.Speaker, strings.TrimSpace(u.Text))
	}
	return b.String()
}

func secToTimestamp(sec float64) string {
	d := time.Duration(sec*1000) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func secToSRT(sec float64) string {
	d := time.Duration(sec*1000) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
