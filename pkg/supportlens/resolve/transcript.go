package resolve

import "regexp"

// speakerPrefix matches a plain "Name: " line prefix. The colon must be
// followed by a space so URLs are not mistaken for speakers.
var speakerPrefix = regexp.MustCompile(`^\s*([^:\n()/]{1,40}?)\s*:\s+`)

type segment struct {
	time    string
	speaker string
	content string
}

// segments splits text at every transcript header. The content of a segment
// runs until the next header or the end of the text.
func (r *Resolver) segments(text string) []segment {
	re := r.lib.TranscriptLine()
	if re == nil {
		return nil
	}
	locs := re.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	out := make([]segment, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, segment{
			time:    submatch(text, loc, 1),
			speaker: submatch(text, loc, 2),
			content: text[loc[1]:end],
		})
	}
	return out
}

// splitSpeaker separates a transcript header or a "Name: " prefix from a
// line. Lines with neither have no speaker.
func (r *Resolver) splitSpeaker(line string) (speaker, content string) {
	if re := r.lib.TranscriptLine(); re != nil {
		if loc := re.FindStringSubmatchIndex(line); loc != nil {
			return submatch(line, loc, 2), line[:loc[0]] + line[loc[1]:]
		}
	}
	if loc := speakerPrefix.FindStringSubmatchIndex(line); loc != nil {
		return submatch(line, loc, 1), line[loc[1]:]
	}
	return "", line
}

func submatch(s string, loc []int, group int) string {
	if 2*group+1 >= len(loc) || loc[2*group] < 0 {
		return ""
	}
	return s[loc[2*group]:loc[2*group+1]]
}
