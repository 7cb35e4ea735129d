// ABOUTME: Tests for the capped shared conversation log.
// ABOUTME: Validates cap enforcement, oldest-first truncation, and atomic replace.

package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgaia/gaia-gateway/internal/llm"
)

func userMsg(text string) llm.Message {
	return llm.NewTextMessage(llm.RoleUser, text)
}

func TestLog_AppendAndSnapshot(t *testing.T) {
	log := NewLog(10)

	log.Append(userMsg("first"))
	log.Append(userMsg("second"))

	snap := log.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "first", snap[0].Content.PlainText())
	assert.Equal(t, "second", snap[1].Content.PlainText())
}

func TestLog_CapEnforcedAfterEveryAppend(t *testing.T) {
	log := NewLog(5)

	for i := 0; i < 20; i++ {
		log.Append(userMsg(fmt.Sprintf("msg-%d", i)))
		assert.LessOrEqual(t, log.Len(), 5)
	}

	// The survivors are exactly the newest five, in order.
	snap := log.Snapshot()
	require.Len(t, snap, 5)
	for i, msg := range snap {
		assert.Equal(t, fmt.Sprintf("msg-%d", 15+i), msg.Content.PlainText())
	}
}

func TestLog_SnapshotIsACopy(t *testing.T) {
	log := NewLog(10)
	log.Append(userMsg("original"))

	snap := log.Snapshot()
	snap[0] = userMsg("mutated")

	assert.Equal(t, "original", log.Snapshot()[0].Content.PlainText())
}

func TestLog_Replace(t *testing.T) {
	log := NewLog(10)
	log.Append(userMsg("old"))

	log.Replace([]llm.Message{
		userMsg("loaded-1"),
		llm.NewTextMessage(llm.RoleAssistant, "loaded-2"),
	})

	snap := log.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "loaded-1", snap[0].Content.PlainText())
	assert.Equal(t, llm.RoleAssistant, snap[1].Role)
}

func TestLog_ReplaceRespectsCap(t *testing.T) {
	log := NewLog(3)

	msgs := make([]llm.Message, 10)
	for i := range msgs {
		msgs[i] = userMsg(fmt.Sprintf("msg-%d", i))
	}
	log.Replace(msgs)

	snap := log.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "msg-7", snap[0].Content.PlainText())
	assert.Equal(t, "msg-9", snap[2].Content.PlainText())
}

func TestLog_Clear(t *testing.T) {
	log := NewLog(10)
	log.Append(userMsg("one"))
	log.Append(userMsg("two"))

	log.Clear()

	assert.Equal(t, 0, log.Len())
	assert.Empty(t, log.Snapshot())
}

func TestLog_ConcurrentAppends(t *testing.T) {
	log := NewLog(50)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				log.Append(userMsg(fmt.Sprintf("w%d-%d", n, j)))
			}
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, 50, log.Len())
}
