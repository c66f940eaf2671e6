package verification

import (
	"fmt"
	"math/rand/v2"
)

// GenerateCodes produces n unique six-digit codes, each fresh with a
// zero usage count. Provisioning happens out of band of the consumption
// service; see cmd/generate-codes.
func GenerateCodes(n int) []Code {
	codes := make([]Code, 0, n)
	seen := make(map[string]bool, n)

	for len(codes) < n {
		code := fmt.Sprintf("%06d", 100000+rand.IntN(900000))
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, Code{Code: code, UsageCount: 0, IsValid: true})
	}

	return codes
}
