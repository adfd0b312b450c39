package dialog

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

var sampleGroup = regexp.MustCompile(`\{([^{}]*)\}(\*?)`)

// Sample expands option groups in a template such as
// "{Okay|Well}{, dude}*, when do we {begin|start}?". Each {a|b} group is
// replaced with one of its options; a group followed by "*" is dropped with
// probability 1/2. A nil rng always takes the first option and keeps every
// group, which makes output predictable in tests. Groups do not nest.
func Sample(template string, rng *rand.Rand) string {
	return sampleGroup.ReplaceAllStringFunc(template, func(g string) string {
		parts := sampleGroup.FindStringSubmatch(g)
		options := strings.Split(parts[1], "|")
		if rng == nil {
			return options[0]
		}
		if parts[2] == "*" && rng.IntN(2) == 0 {
			return ""
		}
		return options[rng.IntN(len(options))]
	})
}
