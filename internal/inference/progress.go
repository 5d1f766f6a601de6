package inference

import (
	"regexp"
	"strconv"
	"strings"
)

var progressRe = regexp.MustCompile(`\[(\d+)/(\d+)\]`)

// ParseProgress extracts the step and "[a/b]" counters from an engine
// progress message. Missing counters yield 0/0; an unrecognised step yields "".
func ParseProgress(text string) (step Step, num, den int) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "fetch") || strings.Contains(lower, "download"):
		step = StepDownload
	case strings.Contains(lower, "shader") || strings.Contains(lower, "compil"):
		step = StepCompile
	case strings.Contains(lower, "load") || strings.Contains(lower, "cache") || strings.Contains(lower, "init"):
		step = StepLoad
	}
	if m := progressRe.FindStringSubmatch(text); m != nil {
		num, _ = strconv.Atoi(m[1])
		den, _ = strconv.Atoi(m[2])
	}
	return step, num, den
}
