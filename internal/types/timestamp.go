// SPDX-License-Identifier: MIT

package types

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TitleForbiddenChars lists the characters a clip title must not contain
// because they are problematic in filesystem paths.
const TitleForbiddenChars = `'"/\|~$#`

// Timestamp is one entry of a video's clip boundaries: where a clip starts
// and what it should be titled.
type Timestamp struct {
	TStart string // "HH:MM:SS" or "MM:SS"
	Title  string
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%8s - %s", t.TStart, t.Title)
}

// ToSeconds converts a "HH:MM:SS"/"MM:SS"/"SS" timestamp into seconds.
func (t Timestamp) ToSeconds() uint64 {
	return ToSeconds(t.TStart)
}

// ToSeconds converts a colon-separated timestamp string into seconds.
// Malformed components are treated as 0, matching the forgiving parsing
// the regex battery already guarantees (digits only).
func ToSeconds(tstamp string) uint64 {
	var sec uint64
	for _, part := range strings.Split(tstamp, ":") {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			n = 0
		}
		sec = 60*sec + n
	}
	return sec
}

// Timestamps is a sequence of Timestamp in description order; the order
// of TStart values is not checked. It may be empty: ExtractTimestamps
// returns no entries when no line matches, and the Download actor then
// substitutes a single whole-stream entry before emitting the video.
type Timestamps []Timestamp

func (ts Timestamps) String() string {
	var b strings.Builder
	b.WriteString("[\n")
	for _, t := range ts {
		fmt.Fprintf(&b, "\t%s\n", t)
	}
	b.WriteString("]")
	return b.String()
}

// Last returns the final timestamp, or false if the sequence is empty.
func (ts Timestamps) Last() (Timestamp, bool) {
	if len(ts) == 0 {
		return Timestamp{}, false
	}
	return ts[len(ts)-1], true
}

// Clip is one (start, end) pairing derived from consecutive timestamps.
// End is nil for the final clip, meaning "through end of stream".
type Clip struct {
	Idx   ClipIdx
	Start Timestamp
	End   *Timestamp
}

// Clips pairs every timestamp with its successor (windows of two), with
// the final timestamp paired with a nil end meaning "to the end of the
// stream". This is the Fan-out actor's per-video clip derivation.
func (ts Timestamps) Clips() []Clip {
	if len(ts) == 0 {
		return nil
	}
	clips := make([]Clip, 0, len(ts))
	for i := 0; i < len(ts)-1; i++ {
		end := ts[i+1]
		clips = append(clips, Clip{Idx: ClipIdx(i), Start: ts[i], End: &end})
	}
	clips = append(clips, Clip{Idx: ClipIdx(len(ts) - 1), Start: ts[len(ts)-1], End: nil})
	return clips
}

// DefaultClipRegexes are the built-in timestamp-extraction patterns tried
// against each line of a video description when the user supplies none.
// Each must carry the named groups "time" and "title".
var DefaultClipRegexes = []*regexp.Regexp{
	// 00:00:00 - Title  /  00:00 Title
	regexp.MustCompile(`^(?P<time>\d+(?::\d+){1,2})\s*[-:]?\s+(?P<title>.+)$`),
}

// ExtractTimestamps scans a video description line by line, testing each
// supplied regex in order until one matches, and builds the resulting
// Timestamps sequence. Titles have TitleForbiddenChars stripped and are
// rendered in title case.
func ExtractTimestamps(description string, clipRegexes []*regexp.Regexp) Timestamps {
	if len(clipRegexes) == 0 {
		clipRegexes = DefaultClipRegexes
	}

	var out Timestamps
	for _, rawLine := range strings.Split(description, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		for _, re := range clipRegexes {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			names := re.SubexpNames()
			var tstart, title string
			for i, name := range names {
				switch name {
				case "time":
					tstart = m[i]
				case "title":
					title = m[i]
				}
			}
			if tstart == "" {
				continue
			}

			out = append(out, Timestamp{
				TStart: tstart,
				Title:  sanitizeTitle(title),
			})
			break
		}
	}
	return out
}

// sanitizeTitle strips TitleForbiddenChars and renders the remainder in
// title case, matching the downloader's title-cleanup contract.
func sanitizeTitle(title string) string {
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(TitleForbiddenChars, r) {
			return -1
		}
		return r
	}, title)

	fields := strings.Fields(stripped)
	for i, f := range fields {
		fields[i] = toTitleWord(f)
	}
	return strings.Join(fields, " ")
}

func toTitleWord(word string) string {
	if word == "" {
		return word
	}
	r := []rune(word)
	return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
}
