package resolver

import (
	"fmt"
	"regexp"
	"strings"
)

// Several embed hosts ship their player setup through Dean Edwards'
// P.A.C.K.E.R. JavaScript compressor:
//
//	eval(function(p,a,c,k,e,d){...}('payload',a,c,'keywords'.split('|'),e,d))
//
// The payload holds the original source with every word replaced by its
// base-36 index into the keyword table. Undoing the substitution is
// enough to expose the media URL; the surrounding eval is never run.

var (
	packedRe       = regexp.MustCompile(`eval\(function\(p,a,c,k,e,[dr]\).*?\)\)`)
	packedParamsRe = regexp.MustCompile(`\}\('(.+)',(\d+),(\d+),'([^']+)'\.split`)
)

// findPacked returns the first packed script blob in the page, or "".
func findPacked(html string) string {
	return packedRe.FindString(html)
}

// unpack reverses the P.A.C.K.E.R. substitution.
func unpack(packed string) (string, error) {
	match := packedParamsRe.FindStringSubmatch(packed)
	if len(match) < 5 {
		return "", fmt.Errorf("packer params not found")
	}

	payload := match[1]
	keywords := strings.Split(match[4], "|")

	result := payload
	for i := len(keywords) - 1; i >= 0; i-- {
		if keywords[i] == "" {
			continue
		}
		pattern := fmt.Sprintf(`\b%s\b`, encodeBase36(i))
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		result = re.ReplaceAllString(result, keywords[i])
	}

	return result, nil
}

// encodeBase36 encodes n the way JavaScript's Number.toString(36) does.
func encodeBase36(n int) string {
	const chars = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n < 36 {
		return string(chars[n])
	}
	return encodeBase36(n/36) + string(chars[n%36])
}
