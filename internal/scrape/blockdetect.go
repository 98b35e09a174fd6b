package scrape

import (
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockDenied     BlockType = "denied"
	BlockJSShell    BlockType = "js_shell"
	BlockEmpty      BlockType = "empty"
)

// minContentLen is the shortest page body treated as real content.
const minContentLen = 100

// challengeLimit bounds the size of a page that is treated as a challenge
// when it mentions a block marker; long pages merely mentioning the word
// pass.
const challengeLimit = 1000

// DetectBlock inspects extracted page text for signs of anti-bot protection
// or an empty shell.
func DetectBlock(content string) (bool, BlockType) {
	content = strings.TrimSpace(content)
	if len(content) < minContentLen {
		return true, BlockEmpty
	}
	if len(content) >= challengeLimit {
		return false, BlockNone
	}

	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "checking your browser"),
		strings.Contains(lower, "just a moment"),
		strings.Contains(lower, "attention required"),
		strings.Contains(lower, "cloudflare"):
		return true, BlockCloudflare
	case strings.Contains(lower, "captcha"):
		return true, BlockCaptcha
	case strings.Contains(lower, "access denied"),
		strings.Contains(lower, "403 forbidden"):
		return true, BlockDenied
	case strings.Contains(lower, "enable javascript"),
		strings.Contains(lower, "please enable cookies"):
		return true, BlockJSShell
	}
	return false, BlockNone
}
