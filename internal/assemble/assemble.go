// Package assemble renders a compress.Result into the final handoff
// document: a title banner, one heading per included layer, and a
// target-specific footer. Grounded on the teacher's section-assembly
// idiom in internal/summary/prompt.go (BuildPrompt's strings.Builder
// writes plus its writeSystemInstruction dispatch-by-type), adapted
// from "summarize a day of sessions" to "render one handoff prompt".
package assemble

import (
	"fmt"
	"strings"

	"github.com/wesm/braindump/internal/compress"
	"github.com/wesm/braindump/internal/session"
)

// referenceThreshold is the prompt-content length above which the
// assembler emits a reference-file prompt instead of the full text.
const referenceThreshold = 50_000

// Document is the assembled handoff output.
type Document struct {
	// Prompt is what should be shown/copied to the target.
	Prompt string
	// Full is the complete rendered document, always, even when
	// Prompt was replaced with a reference-file pointer.
	Full string
	// IsReference reports whether Prompt was replaced because Full
	// exceeded referenceThreshold.
	IsReference bool
}

// Build renders cs's packed layers into a Document. target is the
// same identifier passed to compress.Build ("file", "clipboard", or
// an AgentID); outPath is the path the full document was or will be
// written to, used by the reference-file footer.
func Build(cs *session.Captured, target string, result compress.Result, outPath string) Document {
	var b strings.Builder
	writeBanner(&b, cs)
	for _, l := range result.Included {
		fmt.Fprintf(&b, "## %s\n\n", l.Name)
		b.WriteString(l.Content)
		b.WriteString("\n\n")
	}
	writeFooter(&b, target)

	full := b.String()
	if len(full) > referenceThreshold {
		return Document{
			Prompt:      referencePrompt(cs, outPath),
			Full:        full,
			IsReference: true,
		}
	}
	return Document{Prompt: full, Full: full}
}

func writeBanner(b *strings.Builder, cs *session.Captured) {
	fmt.Fprintf(b, "# Session handoff: %s (%s)\n\n", cs.SessionID, cs.Source)
}

func writeFooter(b *strings.Builder, target string) {
	b.WriteString("---\n\n")
	switch target {
	case "", "file", "clipboard":
		b.WriteString(
			"Paste this document into your coding agent of choice to resume the session above.\n",
		)
	default:
		fmt.Fprintf(
			b,
			"This handoff was prepared for %s. Paste it as the first message of a new session to resume.\n",
			target,
		)
	}
}

func referencePrompt(cs *session.Captured, outPath string) string {
	var b strings.Builder
	writeBanner(&b, cs)
	fmt.Fprintf(
		&b,
		"This handoff is too large to inline. Open %s and paste its contents to resume.\n",
		outPath,
	)
	return b.String()
}
