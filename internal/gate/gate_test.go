package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_DeniesDefaultPatterns(t *testing.T) {
	g := New(nil, nil)

	cases := []string{
		"rm -rf /",
		"echo hi && rm -rf /tmp/../",
		"sudo rm -r /etc",
		"mkfs.ext4 /dev/sda1",
		"dd if=/dev/zero of=/dev/sda",
		":(){:|:&};:",
	}

	for _, cmd := range cases {
		allowed, reason := g.Check(cmd)
		assert.False(t, allowed, "expected %q to be denied", cmd)
		assert.NotEmpty(t, reason)
	}
}

func TestCheck_DenyMatchesAnywhereInCommand(t *testing.T) {
	g := New(nil, nil)

	allowed, reason := g.Check("echo done; sudo rm -rf /var/log")
	require.False(t, allowed)
	assert.Contains(t, reason, "sudo rm")
}

func TestCheck_AllowListChecksLeadingToken(t *testing.T) {
	g := New(nil, []string{"echo", "ls"})

	allowed, _ := g.Check("echo hello world")
	assert.True(t, allowed)

	allowed, reason := g.Check("curl https://example.com")
	require.False(t, allowed)
	assert.Contains(t, reason, "curl")
}

func TestCheck_DenyRunsBeforeAllow(t *testing.T) {
	// "rm" is allow-listed but the deny pattern still wins.
	g := New(nil, []string{"rm"})

	allowed, reason := g.Check("rm -rf /")
	require.False(t, allowed)
	assert.Contains(t, reason, "denied command pattern")
}

func TestCheck_NoAllowListPermitsAnythingNotDenied(t *testing.T) {
	g := New(nil, nil)

	allowed, reason := g.Check("curl -s https://example.com | jq .")
	assert.True(t, allowed)
	assert.Empty(t, reason)
}

func TestCheck_Deterministic(t *testing.T) {
	g := New([]string{"shutdown"}, []string{"echo"})

	for i := 0; i < 3; i++ {
		allowed, reason := g.Check("echo shutdown soon")
		assert.False(t, allowed)
		assert.Contains(t, reason, "shutdown")
	}
}
