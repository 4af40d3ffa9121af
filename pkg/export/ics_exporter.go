package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// ICSEvent is one VEVENT entry in a calendar export.
type ICSEvent struct {
	UID         string
	Start       time.Time
	End         time.Time
	Summary     string
	Description string
}

// ICSExporter renders events into an iCalendar (RFC 5545) document.
type ICSExporter struct{}

// NewICSExporter builds an ICS exporter.
func NewICSExporter() *ICSExporter {
	return &ICSExporter{}
}

// Render produces the calendar bytes. Timestamps are emitted in UTC.
func (e *ICSExporter) Render(calendarName string, events []ICSEvent) ([]byte, error) {
	if calendarName == "" {
		return nil, fmt.Errorf("ics requires a calendar name")
	}
	buf := &bytes.Buffer{}
	writeLine(buf, "BEGIN:VCALENDAR")
	writeLine(buf, "VERSION:2.0")
	writeLine(buf, "PRODID:-//studyhall//planner-api//EN")
	writeLine(buf, "CALSCALE:GREGORIAN")
	writeLine(buf, "X-WR-CALNAME:"+escapeText(calendarName))

	stamp := time.Now().UTC().Format(icsTimeLayout)
	for _, event := range events {
		if event.UID == "" {
			return nil, fmt.Errorf("ics event missing uid")
		}
		writeLine(buf, "BEGIN:VEVENT")
		writeLine(buf, "UID:"+event.UID)
		writeLine(buf, "DTSTAMP:"+stamp)
		writeLine(buf, "DTSTART:"+event.Start.UTC().Format(icsTimeLayout))
		writeLine(buf, "DTEND:"+event.End.UTC().Format(icsTimeLayout))
		writeLine(buf, "SUMMARY:"+escapeText(event.Summary))
		if event.Description != "" {
			writeLine(buf, "DESCRIPTION:"+escapeText(event.Description))
		}
		writeLine(buf, "END:VEVENT")
	}

	writeLine(buf, "END:VCALENDAR")
	return buf.Bytes(), nil
}

const icsTimeLayout = "20060102T150405Z"

// writeLine emits a content line folded at 75 octets per RFC 5545 §3.1.
func writeLine(buf *bytes.Buffer, line string) {
	const limit = 75
	for len(line) > limit {
		buf.WriteString(line[:limit])
		buf.WriteString("\r\n ")
		line = line[limit:]
	}
	buf.WriteString(line)
	buf.WriteString("\r\n")
}

func escapeText(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
	)
	return replacer.Replace(s)
}
