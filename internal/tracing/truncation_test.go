package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("a"))
	assert.Equal(t, "张*", MaskPII("张三"))
	assert.Equal(t, "王*明", MaskPII("王小明"))
	assert.Equal(t, "ab*****io", MaskPII("ab@xyz.io"))
}

func TestSafeAttributeValue(t *testing.T) {
	assert.Equal(t, "us***********om", SafeAttributeValue("user.email", "user@domain.com", 100), "邮箱字段需要掩码")
	assert.Equal(t, "plain", SafeAttributeValue("job.id", "plain", 100))
	assert.Len(t, []rune(SafeAttributeValue("job.reason", "0123456789abcdef", 9)), 9)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abc", TruncateString("abcdef", 3))
	assert.Equal(t, "ab...gh", TruncateString("abcdefgh", 7))
}
