package qabank

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/polzovatel/easy-apply-agent/internal/answers"
)

// Fingerprint hashes a question into a short bucket key used to group
// near-duplicate questions. Only the first four significant words
// contribute (sorted, longer than three characters), so small rewordings
// land in the same bucket.
func Fingerprint(question string) string {
	words := strings.Fields(answers.Normalize(question))
	sig := make([]string, 0, 4)
	for _, w := range words {
		if len(w) <= 3 {
			continue
		}
		sig = append(sig, w)
		if len(sig) == 4 {
			break
		}
	}
	sort.Strings(sig)
	sum := md5.Sum([]byte(strings.Join(sig, " ")))
	return hex.EncodeToString(sum[:])[:8]
}
